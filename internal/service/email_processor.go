package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/classifier"
	"github.com/jobhub/inbox-worker/internal/config"
	"github.com/jobhub/inbox-worker/internal/models"
	"github.com/jobhub/inbox-worker/internal/repository"
	"github.com/jobhub/inbox-worker/internal/retry"
)

// DedupGate is the pre-check for already-processed emails.
type DedupGate interface {
	IsDuplicate(ctx context.Context, userID, externalEmailID string) (bool, error)
	MarkSeen(ctx context.Context, userID, externalEmailID string)
}

// EmailStore is the email-table surface, implemented by
// repository.EmailRepository.
type EmailStore interface {
	Create(ctx context.Context, email *models.Email) error
	GetByExternalID(ctx context.Context, userID, externalEmailID string) (*models.Email, error)
	LinkApplication(ctx context.Context, emailID, applicationID string) error
	MarkParsed(ctx context.Context, emailID string, confidence *float64) error
}

// Classifier is the opaque email classifier.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (*classifier.ParsedEmail, error)
}

// ApplicationMatcher resolves the application an event email belongs to.
type ApplicationMatcher interface {
	FindMatch(ctx context.Context, userID string, parsed classifier.ParsedEmail) (string, error)
}

// Mutator is the write side of the workflow, implemented by
// ApplicationMutator.
type Mutator interface {
	CreateApplication(ctx context.Context, userID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.Application, error)
	CreateEvent(ctx context.Context, applicationID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.ApplicationEvent, error)
	UpdateApplicationFromEvent(ctx context.Context, userID, applicationID string, parsed classifier.ParsedEmail, receivedAt time.Time) ([]string, error)
}

// EmailProcessor sequences gate -> persist -> classify -> match -> mutate
// for one inbound email. One invocation handles one email; concurrency comes
// from concurrent invocations only.
type EmailProcessor struct {
	gate            DedupGate
	emails          EmailStore
	classifier      Classifier
	matcher         ApplicationMatcher
	mutator         Mutator
	retryPolicy     retry.Policy
	unmatchedPolicy string
	log             *logrus.Logger
}

func NewEmailProcessor(
	gate DedupGate,
	emails EmailStore,
	cls Classifier,
	m ApplicationMatcher,
	mutator Mutator,
	retryPolicy retry.Policy,
	unmatchedPolicy string,
	log *logrus.Logger,
) *EmailProcessor {
	return &EmailProcessor{
		gate:            gate,
		emails:          emails,
		classifier:      cls,
		matcher:         m,
		mutator:         mutator,
		retryPolicy:     retryPolicy,
		unmatchedPolicy: unmatchedPolicy,
		log:             log,
	}
}

// ProcessEmail runs the full workflow for one inbound email and returns a
// typed outcome. The raw email row persisted in step 2 is never rolled back:
// on classifier or store failure it stays in place, unparsed, for later
// reprocessing.
func (p *EmailProcessor) ProcessEmail(ctx context.Context, userID string, raw RawEmail) (*Outcome, error) {
	if userID == "" {
		return nil, &ValidationError{Reason: "user id is required"}
	}
	if raw.ExternalID == "" {
		return nil, &ValidationError{Reason: "external email id is required"}
	}

	// Step 1: dedup pre-check. An inconclusive check is an error, never a
	// license to proceed.
	var dup bool
	err := retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		var derr error
		dup, derr = p.gate.IsDuplicate(ctx, userID, raw.ExternalID)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if dup {
		return p.duplicateOutcome(ctx, userID, raw.ExternalID), nil
	}

	// Step 2: persist the raw email unconditionally for audit. The unique
	// index is the authoritative dedup guarantee; losing the insert race is
	// a duplicate outcome, not a failure.
	email := &models.Email{
		ID:              uuid.New().String(),
		UserID:          userID,
		ExternalEmailID: raw.ExternalID,
		Sender:          raw.Sender,
		Recipient:       raw.Recipient,
		Subject:         raw.Subject,
		BodyText:        raw.BodyText,
		BodyHTML:        raw.BodyHTML,
		ReceivedAt:      raw.ReceivedAt,
		CreatedAt:       time.Now(),
	}
	err = retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		cerr := p.emails.Create(ctx, email)
		if errors.Is(cerr, repository.ErrDuplicateEmail) {
			return retry.Permanent(cerr)
		}
		return cerr
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		p.log.WithFields(logrus.Fields{
			"user_id":           userID,
			"external_email_id": raw.ExternalID,
		}).Info("lost insert race, treating as duplicate")
		return p.duplicateOutcome(ctx, userID, raw.ExternalID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("persisting email: %w", err)
	}
	p.gate.MarkSeen(ctx, userID, raw.ExternalID)

	// Step 3: classify. Retried independently of store retries; after
	// exhaustion the email row stays for reprocessing.
	var parsed *classifier.ParsedEmail
	err = retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		var cerr error
		parsed, cerr = p.classifier.Classify(ctx, raw.Subject, raw.BodyText)
		return cerr
	})
	if err != nil {
		p.log.WithError(err).WithField("email_id", email.ID).
			Error("classification failed, email kept for reprocessing")
		return nil, fmt.Errorf("classifying email %s: %w", email.ID, err)
	}

	// Step 4: branch on intent.
	outcome, err := p.applyIntent(ctx, userID, email.ID, *parsed, raw.ReceivedAt)
	if err != nil {
		return nil, err
	}

	// Step 5: stamp parsed_at and confidence regardless of branch.
	// Best-effort: the outcome stands even if the stamp fails.
	err = retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		return p.emails.MarkParsed(ctx, email.ID, parsed.Confidence)
	})
	if err != nil {
		p.log.WithError(err).WithField("email_id", email.ID).
			Error("failed to stamp email as parsed")
	}

	p.log.WithFields(logrus.Fields{
		"email_id":       email.ID,
		"intent":         parsed.Intent,
		"outcome":        outcome.Status,
		"application_id": outcome.ApplicationID,
	}).Info("processed email")
	return outcome, nil
}

// applyIntent runs the intent-specific mutation and links the email row to
// the application it touched.
func (p *EmailProcessor) applyIntent(ctx context.Context, userID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*Outcome, error) {
	switch parsed.Intent {
	case models.IntentNewApplication:
		app, err := p.createAndLink(ctx, userID, emailID, parsed, receivedAt)
		if err != nil {
			return nil, err
		}
		return &Outcome{Status: OutcomeNewApplication, EmailID: emailID, ApplicationID: app.ID}, nil

	case models.IntentApplicationEvent:
		return p.applyEvent(ctx, userID, emailID, parsed, receivedAt)

	case models.IntentGeneral:
		return &Outcome{Status: OutcomeGeneral, EmailID: emailID}, nil

	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unrecognized intent %q", parsed.Intent)}
	}
}

func (p *EmailProcessor) applyEvent(ctx context.Context, userID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*Outcome, error) {
	var applicationID string
	err := retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		var merr error
		applicationID, merr = p.matcher.FindMatch(ctx, userID, parsed)
		return merr
	})
	if err != nil {
		return nil, fmt.Errorf("matching application: %w", err)
	}

	if applicationID == "" {
		if p.unmatchedPolicy == config.UnmatchedPolicySkip {
			p.log.WithFields(logrus.Fields{
				"email_id": emailID,
				"company":  parsed.Company,
				"role":     parsed.Role,
			}).Warn("no matching application, leaving email for review")
			return &Outcome{Status: OutcomeNeedsReview, EmailID: emailID}, nil
		}

		// Default policy: an event for an application we never saw still
		// represents a real application, so create it and attach the event.
		app, err := p.createAndLink(ctx, userID, emailID, parsed, receivedAt)
		if err != nil {
			return nil, err
		}
		event, err := p.createEvent(ctx, app.ID, emailID, parsed, receivedAt)
		if err != nil {
			return nil, err
		}
		p.log.WithFields(logrus.Fields{
			"application_id": app.ID,
			"event_id":       event.ID,
		}).Info("created application for unmatched event")
		return &Outcome{
			Status:        OutcomeNewApplication,
			EmailID:       emailID,
			ApplicationID: app.ID,
			EventID:       event.ID,
		}, nil
	}

	event, err := p.createEvent(ctx, applicationID, emailID, parsed, receivedAt)
	if err != nil {
		return nil, err
	}

	var changed []string
	err = retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		var uerr error
		changed, uerr = p.mutator.UpdateApplicationFromEvent(ctx, userID, applicationID, parsed, receivedAt)
		if IsValidationError(uerr) {
			return retry.Permanent(uerr)
		}
		return uerr
	})
	if err != nil {
		return nil, fmt.Errorf("updating application %s: %w", applicationID, err)
	}

	if err := p.linkEmail(ctx, emailID, applicationID); err != nil {
		return nil, err
	}

	return &Outcome{
		Status:        OutcomeApplicationUpdated,
		EmailID:       emailID,
		ApplicationID: applicationID,
		EventID:       event.ID,
		UpdatedFields: changed,
	}, nil
}

func (p *EmailProcessor) createAndLink(ctx context.Context, userID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.Application, error) {
	var app *models.Application
	err := retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		var cerr error
		app, cerr = p.mutator.CreateApplication(ctx, userID, parsed, receivedAt)
		if IsValidationError(cerr) {
			return retry.Permanent(cerr)
		}
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("creating application: %w", err)
	}
	if err := p.linkEmail(ctx, emailID, app.ID); err != nil {
		return nil, err
	}
	return app, nil
}

func (p *EmailProcessor) createEvent(ctx context.Context, applicationID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.ApplicationEvent, error) {
	var event *models.ApplicationEvent
	err := retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		var cerr error
		event, cerr = p.mutator.CreateEvent(ctx, applicationID, emailID, parsed, receivedAt)
		if IsValidationError(cerr) {
			return retry.Permanent(cerr)
		}
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	return event, nil
}

func (p *EmailProcessor) linkEmail(ctx context.Context, emailID, applicationID string) error {
	err := retry.Do(ctx, p.retryPolicy, func(ctx context.Context) error {
		return p.emails.LinkApplication(ctx, emailID, applicationID)
	})
	if err != nil {
		return fmt.Errorf("linking email %s to application %s: %w", emailID, applicationID, err)
	}
	return nil
}

// duplicateOutcome builds the duplicate outcome, best-effort resolving the
// id of the already-stored email row.
func (p *EmailProcessor) duplicateOutcome(ctx context.Context, userID, externalEmailID string) *Outcome {
	outcome := &Outcome{Status: OutcomeDuplicate}
	existing, err := p.emails.GetByExternalID(ctx, userID, externalEmailID)
	if err == nil {
		outcome.EmailID = existing.ID
		if existing.ApplicationID != nil {
			outcome.ApplicationID = *existing.ApplicationID
		}
	}
	return outcome
}
