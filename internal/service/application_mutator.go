package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/classifier"
	"github.com/jobhub/inbox-worker/internal/models"
)

// ApplicationStore is the application-table surface the mutator writes
// through, implemented by repository.ApplicationRepository.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, userID, applicationID string) (*models.Application, error)
	UpdateFields(ctx context.Context, applicationID string, prevUpdatedAt *time.Time, fields map[string]interface{}) (int64, error)
}

// EventStore is the event-table surface, implemented by
// repository.EventRepository.
type EventStore interface {
	Create(ctx context.Context, event *models.ApplicationEvent) error
}

// ApplicationMutator owns every write to applications and events so the
// timestamp invariants live in one place: last_updated_at moves only on a
// field-level mutation, last_email_received_at only when a linked email
// arrives.
type ApplicationMutator struct {
	apps   ApplicationStore
	events EventStore
	log    *logrus.Logger
}

func NewApplicationMutator(apps ApplicationStore, events EventStore, log *logrus.Logger) *ApplicationMutator {
	return &ApplicationMutator{apps: apps, events: events, log: log}
}

// CreateApplication inserts a new application from parsed email data.
// Company and role are required; status defaults to APPLIED when the
// classifier supplied none.
func (m *ApplicationMutator) CreateApplication(ctx context.Context, userID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.Application, error) {
	if parsed.Company == "" {
		return nil, &ValidationError{Reason: "company is required"}
	}
	if parsed.Role == "" {
		return nil, &ValidationError{Reason: "role is required"}
	}

	status := parsed.Status
	if status == "" {
		status = models.StatusApplied
	}
	if !status.IsValid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unrecognized status %q", parsed.Status)}
	}

	now := time.Now()
	received := receivedAt
	app := &models.Application{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Company:             parsed.Company,
		Role:                parsed.Role,
		Status:              status,
		Location:            parsed.Location,
		SalaryRange:         parsed.SalaryRange,
		JobPostingURL:       parsed.JobPostingURL,
		Notes:               parsed.Notes,
		AppliedDate:         receivedAt,
		CreatedAt:           now,
		LastUpdatedAt:       now,
		LastEmailReceivedAt: &received,
	}

	if err := m.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"company":        app.Company,
		"role":           app.Role,
		"status":         app.Status,
	}).Info("created application")
	return app, nil
}

// CreateEvent appends an immutable event to an application's timeline. A
// parsed event_type outside the closed enum fails; a missing one falls back
// to APPLICATION_RECEIVED. The event date falls back to the email's receipt
// time.
func (m *ApplicationMutator) CreateEvent(ctx context.Context, applicationID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.ApplicationEvent, error) {
	eventType := models.EventApplicationReceived
	if parsed.EventType != nil {
		if !parsed.EventType.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnrecognizedEventType, *parsed.EventType)
		}
		eventType = *parsed.EventType
	}

	eventDate := receivedAt
	if parsed.EventDate != nil {
		eventDate = *parsed.EventDate
	}

	description := parsed.EventDescription
	if description == nil {
		d := fmt.Sprintf("Event from email: %s - %s", parsed.Company, parsed.Role)
		description = &d
	}

	event := &models.ApplicationEvent{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		EventType:     eventType,
		EventDate:     eventDate,
		Description:   description,
		Location:      parsed.Location,
		Notes:         parsed.Notes,
		EmailID:       &emailID,
		CreatedAt:     time.Now(),
	}

	if err := m.events.Create(ctx, event); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"event_id":       event.ID,
		"application_id": applicationID,
		"event_type":     eventType,
	}).Info("created application event")
	return event, nil
}

// UpdateApplicationFromEvent writes only the fields the parsed email
// supplies with a non-null value that differs from the stored one, and
// returns the names of the fields actually changed. The timestamps are
// bumped once, only when that set is non-empty, so a no-op event leaves
// last_updated_at untouched. The write carries a compare-and-set guard on
// last_updated_at; a lost race is retried once against fresh state before
// degrading to last-write-wins.
func (m *ApplicationMutator) UpdateApplicationFromEvent(ctx context.Context, userID, applicationID string, parsed classifier.ParsedEmail, receivedAt time.Time) ([]string, error) {
	app, err := m.apps.GetByID(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		fields, changed, err := m.fieldDelta(app, parsed)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, nil
		}

		fields["last_updated_at"] = time.Now()
		fields["last_email_received_at"] = receivedAt

		prev := app.LastUpdatedAt
		rows, err := m.apps.UpdateFields(ctx, applicationID, &prev, fields)
		if err != nil {
			return nil, err
		}
		if rows > 0 {
			return changed, nil
		}

		// A concurrent workflow updated the row between our read and write.
		m.log.WithField("application_id", applicationID).
			Warn("concurrent update detected, recomputing field delta")
		app, err = m.apps.GetByID(ctx, userID, applicationID)
		if err != nil {
			return nil, err
		}
	}

	// Second CAS also lost; apply the delta unguarded (last write wins).
	fields, changed, err := m.fieldDelta(app, parsed)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	fields["last_updated_at"] = time.Now()
	fields["last_email_received_at"] = receivedAt
	if _, err := m.apps.UpdateFields(ctx, applicationID, nil, fields); err != nil {
		return nil, err
	}
	return changed, nil
}

// fieldDelta computes the column updates for the fields an event may touch:
// status, location, salary_range, notes. Values equal to the stored ones are
// skipped to avoid spurious last_updated_at churn.
func (m *ApplicationMutator) fieldDelta(app *models.Application, parsed classifier.ParsedEmail) (map[string]interface{}, []string, error) {
	fields := make(map[string]interface{})

	if parsed.Status != "" {
		if !parsed.Status.IsValid() {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("unrecognized status %q", parsed.Status)}
		}
		if parsed.Status != app.Status {
			if parsed.Status.IsBackwardsFrom(app.Status) {
				m.log.WithFields(logrus.Fields{
					"application_id": app.ID,
					"from":           app.Status,
					"to":             parsed.Status,
				}).Warn("accepting backwards status transition")
			}
			fields["status"] = parsed.Status
		}
	}
	if parsed.Location != nil && !strPtrEqual(parsed.Location, app.Location) {
		fields["location"] = *parsed.Location
	}
	if parsed.SalaryRange != nil && !strPtrEqual(parsed.SalaryRange, app.SalaryRange) {
		fields["salary_range"] = *parsed.SalaryRange
	}
	if parsed.Notes != nil && !strPtrEqual(parsed.Notes, app.Notes) {
		fields["notes"] = *parsed.Notes
	}

	changed := make([]string, 0, len(fields))
	for name := range fields {
		changed = append(changed, name)
	}
	sort.Strings(changed)
	return fields, changed, nil
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
