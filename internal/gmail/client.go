// Package gmail wraps the Gmail REST API for the push ingestion path:
// history diffs, single-message fetches, and OAuth token refresh.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jobhub/inbox-worker/internal/service"
)

type Client struct {
	clientID     string
	clientSecret string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (c *Client) newService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// ListNewMessageIDs walks the mailbox history since startHistoryID and
// returns the ids of newly added messages plus the history id to resume
// from next time.
func (c *Client) ListNewMessageIDs(ctx context.Context, accessToken string, startHistoryID uint64) ([]string, uint64, error) {
	svc, err := c.newService(ctx, accessToken)
	if err != nil {
		return nil, 0, err
	}

	var messageIDs []string
	seen := make(map[string]struct{})
	newHistoryID := startHistoryID
	pageToken := ""

	for {
		call := svc.Users.History.List("me").
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list history: %w", err)
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				if _, ok := seen[added.Message.Id]; ok {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				messageIDs = append(messageIDs, added.Message.Id)
			}
		}
		if resp.HistoryId > newHistoryID {
			newHistoryID = resp.HistoryId
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return messageIDs, newHistoryID, nil
}

// FetchEmailByID fetches a single message and flattens it into the
// workflow's inbound shape.
func (c *Client) FetchEmailByID(ctx context.Context, accessToken string, messageID string) (*service.RawEmail, error) {
	svc, err := c.newService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return c.parseMessage(msg)
}

// parseMessage extracts headers and bodies from a full-format message.
func (c *Client) parseMessage(msg *gmail.Message) (*service.RawEmail, error) {
	if msg.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", msg.Id)
	}

	raw := &service.RawEmail{ExternalID: msg.Id}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			raw.Sender = header.Value
		case "to":
			raw.Recipient = header.Value
		case "subject":
			raw.Subject = header.Value
		case "date":
			if t, err := parseEmailDate(header.Value); err == nil {
				raw.ReceivedAt = t
			}
		}
	}
	if raw.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}

	var textPlain, textHTML string
	extractBodies(msg.Payload, &textPlain, &textHTML)
	raw.BodyText = textPlain
	if raw.BodyText == "" {
		raw.BodyText = msg.Snippet
	}
	if textHTML != "" {
		raw.BodyHTML = &textHTML
	}

	return raw, nil
}

// extractBodies walks the MIME tree collecting the first text/plain and
// text/html parts.
func extractBodies(part *gmail.MessagePart, textPlain, textHTML *string) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				if *textPlain == "" {
					*textPlain = string(decoded)
				}
			case "text/html":
				if *textHTML == "" {
					*textHTML = string(decoded)
				}
			}
		}
	}

	for _, p := range part.Parts {
		extractBodies(p, textPlain, textHTML)
	}
}

// RefreshAccessToken refreshes the OAuth2 access token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*service.TokenRefreshResult, error) {
	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
	}

	tokenSource := config.TokenSource(ctx, token)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	result := &service.TokenRefreshResult{
		AccessToken: newToken.AccessToken,
		ExpiresAt:   newToken.Expiry,
	}

	// Check if the refresh token was rotated
	if newToken.RefreshToken != "" && newToken.RefreshToken != refreshToken {
		result.RefreshToken = newToken.RefreshToken
	} else {
		result.RefreshToken = refreshToken
	}

	return result, nil
}

// parseEmailDate parses the common email date formats
func parseEmailDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC3339,
	}

	dateStr = strings.TrimSpace(dateStr)

	// Drop a trailing timezone name in parentheses, e.g. "(UTC)"
	if idx := strings.Index(dateStr, " ("); idx != -1 {
		dateStr = dateStr[:idx]
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
