package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/models"
)

// GmailClient is the Gmail API surface the sync service needs.
type GmailClient interface {
	FetchEmailByID(ctx context.Context, accessToken, messageID string) (*RawEmail, error)
	ListNewMessageIDs(ctx context.Context, accessToken string, startHistoryID uint64) ([]string, uint64, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenRefreshResult, error)
}

// AccountStore is the account-table surface, implemented by
// repository.AccountRepository.
type AccountStore interface {
	GetByGmailAddress(ctx context.Context, gmailAddress string) (*models.Account, error)
	UpdateTokens(ctx context.Context, accountID string, accessToken string, refreshToken string, accessTokenExpiresAt time.Time) error
	UpdateHistoryID(ctx context.Context, accountID string, historyID uint64) error
}

// Processor runs the email workflow, implemented by EmailProcessor.
type Processor interface {
	ProcessEmail(ctx context.Context, userID string, raw RawEmail) (*Outcome, error)
}

// GmailSyncService turns a Gmail push notification into workflow runs: it
// resolves the linked account, diffs the mailbox history since the stored
// cursor, fetches each new message, and feeds it through ProcessEmail.
// Delivery is at-least-once; duplicate outcomes are expected and harmless.
type GmailSyncService struct {
	accounts  AccountStore
	gmail     GmailClient
	processor Processor
	log       *logrus.Logger
}

func NewGmailSyncService(accounts AccountStore, gmail GmailClient, processor Processor, log *logrus.Logger) *GmailSyncService {
	return &GmailSyncService{
		accounts:  accounts,
		gmail:     gmail,
		processor: processor,
		log:       log,
	}
}

// HandlePush processes one Gmail push notification for the given address.
func (s *GmailSyncService) HandlePush(ctx context.Context, emailAddress string, pushedHistoryID uint64) error {
	account, err := s.accounts.GetByGmailAddress(ctx, emailAddress)
	if err != nil {
		return fmt.Errorf("resolving account for %s: %w", emailAddress, err)
	}

	if account.AccessToken == nil || account.RefreshToken == nil {
		return fmt.Errorf("account %s missing tokens", account.ID)
	}

	accessToken := *account.AccessToken
	if s.isTokenExpired(account.AccessTokenExpiresAt) {
		s.log.WithField("account_id", account.ID).Info("access token expired, refreshing")
		accessToken, err = s.refreshToken(ctx, account)
		if err != nil {
			return fmt.Errorf("refreshing token: %w", err)
		}
	}

	startHistoryID := account.LastHistoryID
	if startHistoryID == 0 {
		// No cursor yet: adopt the pushed id and start syncing from the
		// next notification.
		s.log.WithField("account_id", account.ID).Info("no history cursor, adopting pushed history id")
		return s.accounts.UpdateHistoryID(ctx, account.ID, pushedHistoryID)
	}

	messageIDs, newHistoryID, err := s.gmail.ListNewMessageIDs(ctx, accessToken, startHistoryID)
	if err != nil {
		return fmt.Errorf("listing history for account %s: %w", account.ID, err)
	}

	processed := 0
	for _, messageID := range messageIDs {
		raw, err := s.gmail.FetchEmailByID(ctx, accessToken, messageID)
		if err != nil {
			// Keep the cursor behind the failed message so the next push
			// retries it.
			s.log.WithError(err).WithField("message_id", messageID).Error("failed to fetch message")
			return fmt.Errorf("fetching message %s: %w", messageID, err)
		}

		outcome, err := s.processor.ProcessEmail(ctx, account.UserID, *raw)
		if err != nil {
			if IsValidationError(err) {
				s.log.WithError(err).WithField("message_id", messageID).
					Warn("skipping message that failed validation")
				continue
			}
			return fmt.Errorf("processing message %s: %w", messageID, err)
		}
		processed++

		s.log.WithFields(logrus.Fields{
			"message_id": messageID,
			"outcome":    outcome.Status,
		}).Info("ingested pushed message")
	}

	if newHistoryID > startHistoryID {
		if err := s.accounts.UpdateHistoryID(ctx, account.ID, newHistoryID); err != nil {
			return fmt.Errorf("advancing history cursor: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"messages":   len(messageIDs),
		"processed":  processed,
	}).Info("gmail push handled")
	return nil
}

// isTokenExpired checks if the access token is expired or will expire within 5 minutes
func (s *GmailSyncService) isTokenExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return time.Now().Add(5 * time.Minute).After(*expiresAt)
}

// refreshToken refreshes the access token and persists the new pair.
func (s *GmailSyncService) refreshToken(ctx context.Context, account *models.Account) (string, error) {
	result, err := s.gmail.RefreshAccessToken(ctx, *account.RefreshToken)
	if err != nil {
		return "", err
	}

	if err := s.accounts.UpdateTokens(ctx, account.ID, result.AccessToken, result.RefreshToken, result.ExpiresAt); err != nil {
		return "", fmt.Errorf("storing refreshed tokens: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"expires_at": result.ExpiresAt,
	}).Info("token refreshed")
	return result.AccessToken, nil
}
