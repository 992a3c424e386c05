package service

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/classifier"
	"github.com/jobhub/inbox-worker/internal/models"
	"github.com/jobhub/inbox-worker/internal/retry"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fastRetry keeps test retries from sleeping.
var fastRetry = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Millisecond,
	MaxDelay:    time.Millisecond,
}

type mockGate struct {
	isDuplicateFn func(ctx context.Context, userID, externalEmailID string) (bool, error)
	markSeenCalls int
}

func (m *mockGate) IsDuplicate(ctx context.Context, userID, externalEmailID string) (bool, error) {
	if m.isDuplicateFn != nil {
		return m.isDuplicateFn(ctx, userID, externalEmailID)
	}
	return false, nil
}

func (m *mockGate) MarkSeen(ctx context.Context, userID, externalEmailID string) {
	m.markSeenCalls++
}

type mockEmailStore struct {
	createFn          func(ctx context.Context, email *models.Email) error
	getByExternalIDFn func(ctx context.Context, userID, externalEmailID string) (*models.Email, error)
	linkFn            func(ctx context.Context, emailID, applicationID string) error
	markParsedFn      func(ctx context.Context, emailID string, confidence *float64) error

	createCalls     int
	linkCalls       int
	markParsedCalls int
}

func (m *mockEmailStore) Create(ctx context.Context, email *models.Email) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, email)
	}
	return nil
}

func (m *mockEmailStore) GetByExternalID(ctx context.Context, userID, externalEmailID string) (*models.Email, error) {
	if m.getByExternalIDFn != nil {
		return m.getByExternalIDFn(ctx, userID, externalEmailID)
	}
	return &models.Email{ID: "existing-email"}, nil
}

func (m *mockEmailStore) LinkApplication(ctx context.Context, emailID, applicationID string) error {
	m.linkCalls++
	if m.linkFn != nil {
		return m.linkFn(ctx, emailID, applicationID)
	}
	return nil
}

func (m *mockEmailStore) MarkParsed(ctx context.Context, emailID string, confidence *float64) error {
	m.markParsedCalls++
	if m.markParsedFn != nil {
		return m.markParsedFn(ctx, emailID, confidence)
	}
	return nil
}

type mockClassifier struct {
	classifyFn func(ctx context.Context, subject, body string) (*classifier.ParsedEmail, error)
	calls      int
}

func (m *mockClassifier) Classify(ctx context.Context, subject, body string) (*classifier.ParsedEmail, error) {
	m.calls++
	if m.classifyFn != nil {
		return m.classifyFn(ctx, subject, body)
	}
	return &classifier.ParsedEmail{Intent: models.IntentGeneral}, nil
}

type mockMatcher struct {
	findMatchFn func(ctx context.Context, userID string, parsed classifier.ParsedEmail) (string, error)
	calls       int
}

func (m *mockMatcher) FindMatch(ctx context.Context, userID string, parsed classifier.ParsedEmail) (string, error) {
	m.calls++
	if m.findMatchFn != nil {
		return m.findMatchFn(ctx, userID, parsed)
	}
	return "", nil
}

type mockMutator struct {
	createApplicationFn func(ctx context.Context, userID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.Application, error)
	createEventFn       func(ctx context.Context, applicationID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.ApplicationEvent, error)
	updateFn            func(ctx context.Context, userID, applicationID string, parsed classifier.ParsedEmail, receivedAt time.Time) ([]string, error)

	createApplicationCalls int
	createEventCalls       int
	updateCalls            int
}

func (m *mockMutator) CreateApplication(ctx context.Context, userID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.Application, error) {
	m.createApplicationCalls++
	if m.createApplicationFn != nil {
		return m.createApplicationFn(ctx, userID, parsed, receivedAt)
	}
	return &models.Application{ID: "app-1", UserID: userID, Company: parsed.Company, Role: parsed.Role}, nil
}

func (m *mockMutator) CreateEvent(ctx context.Context, applicationID, emailID string, parsed classifier.ParsedEmail, receivedAt time.Time) (*models.ApplicationEvent, error) {
	m.createEventCalls++
	if m.createEventFn != nil {
		return m.createEventFn(ctx, applicationID, emailID, parsed, receivedAt)
	}
	return &models.ApplicationEvent{ID: "event-1", ApplicationID: applicationID}, nil
}

func (m *mockMutator) UpdateApplicationFromEvent(ctx context.Context, userID, applicationID string, parsed classifier.ParsedEmail, receivedAt time.Time) ([]string, error) {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, applicationID, parsed, receivedAt)
	}
	return nil, nil
}

type mockApplicationStore struct {
	createFn       func(ctx context.Context, app *models.Application) error
	getByIDFn      func(ctx context.Context, userID, applicationID string) (*models.Application, error)
	updateFieldsFn func(ctx context.Context, applicationID string, prevUpdatedAt *time.Time, fields map[string]interface{}) (int64, error)

	createCalls       int
	getByIDCalls      int
	updateFieldsCalls int
}

func (m *mockApplicationStore) Create(ctx context.Context, app *models.Application) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, app)
	}
	return nil
}

func (m *mockApplicationStore) GetByID(ctx context.Context, userID, applicationID string) (*models.Application, error) {
	m.getByIDCalls++
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID, applicationID)
	}
	return &models.Application{ID: applicationID, UserID: userID}, nil
}

func (m *mockApplicationStore) UpdateFields(ctx context.Context, applicationID string, prevUpdatedAt *time.Time, fields map[string]interface{}) (int64, error) {
	m.updateFieldsCalls++
	if m.updateFieldsFn != nil {
		return m.updateFieldsFn(ctx, applicationID, prevUpdatedAt, fields)
	}
	return 1, nil
}

type mockEventStore struct {
	createFn    func(ctx context.Context, event *models.ApplicationEvent) error
	createCalls int
	lastEvent   *models.ApplicationEvent
}

func (m *mockEventStore) Create(ctx context.Context, event *models.ApplicationEvent) error {
	m.createCalls++
	m.lastEvent = event
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func strPtr(s string) *string { return &s }
