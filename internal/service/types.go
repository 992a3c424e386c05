package service

import "time"

// RawEmail is the structured inbound message handed to the workflow, either
// from the HTTP API or from the Gmail push ingester.
type RawEmail struct {
	ExternalID string
	Sender     string
	Recipient  string
	Subject    string
	BodyText   string
	BodyHTML   *string
	ReceivedAt time.Time
}

// OutcomeStatus is the terminal state of one workflow run.
type OutcomeStatus string

const (
	OutcomeNewApplication     OutcomeStatus = "new_application"
	OutcomeApplicationUpdated OutcomeStatus = "application_updated"
	OutcomeGeneral            OutcomeStatus = "general"
	OutcomeDuplicate          OutcomeStatus = "duplicate"
	// OutcomeNeedsReview is returned for an unmatched APPLICATION_EVENT when
	// the unmatched-event policy is "skip": the email is persisted but left
	// unlinked for manual review.
	OutcomeNeedsReview OutcomeStatus = "needs_review"
)

// Outcome reports what one ProcessEmail invocation did.
type Outcome struct {
	Status        OutcomeStatus
	EmailID       string
	ApplicationID string
	EventID       string
	UpdatedFields []string
}

// TokenRefreshResult carries a refreshed OAuth token pair.
type TokenRefreshResult struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string // May be same or new
}
