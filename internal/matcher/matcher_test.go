package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/classifier"
	"github.com/jobhub/inbox-worker/internal/models"
	"github.com/jobhub/inbox-worker/internal/repository"
)

type mockFinder struct {
	getByIDFunc func(ctx context.Context, userID, applicationID string) (*models.Application, error)
	exactFunc   func(ctx context.Context, userID, company, role string) ([]models.Application, error)
	foldFunc    func(ctx context.Context, userID, company, role string) ([]models.Application, error)
}

func (m *mockFinder) GetByID(ctx context.Context, userID, applicationID string) (*models.Application, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, userID, applicationID)
	}
	return nil, repository.ErrApplicationNotFound
}

func (m *mockFinder) FindByCompanyRole(ctx context.Context, userID, company, role string) ([]models.Application, error) {
	if m.exactFunc != nil {
		return m.exactFunc(ctx, userID, company, role)
	}
	return nil, nil
}

func (m *mockFinder) FindByCompanyRoleFold(ctx context.Context, userID, company, role string) ([]models.Application, error) {
	if m.foldFunc != nil {
		return m.foldFunc(ctx, userID, company, role)
	}
	return nil, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func strPtr(s string) *string { return &s }

func app(id string, updatedAt time.Time, location *string) models.Application {
	return models.Application{
		ID:            id,
		UserID:        "user-1",
		Company:       "Acme",
		Role:          "Engineer",
		Status:        models.StatusApplied,
		Location:      location,
		LastUpdatedAt: updatedAt,
	}
}

func TestFindMatch_ExplicitApplicationID(t *testing.T) {
	now := time.Now()
	finder := &mockFinder{
		getByIDFunc: func(ctx context.Context, userID, applicationID string) (*models.Application, error) {
			if userID != "user-1" || applicationID != "app-42" {
				t.Errorf("unexpected lookup: %s %s", userID, applicationID)
			}
			a := app("app-42", now, nil)
			return &a, nil
		},
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			t.Error("exact match should not run when explicit id resolves")
			return nil, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{
		ApplicationID: strPtr("app-42"),
		Company:       "Acme",
		Role:          "Engineer",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "app-42" {
		t.Errorf("expected app-42, got %q", id)
	}
}

func TestFindMatch_ExplicitIDNotFoundFallsThrough(t *testing.T) {
	now := time.Now()
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return []models.Application{app("app-1", now, nil)}, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{
		ApplicationID: strPtr("gone"),
		Company:       "Acme",
		Role:          "Engineer",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "app-1" {
		t.Errorf("expected fallthrough to exact match, got %q", id)
	}
}

func TestFindMatch_ExactMatchWins(t *testing.T) {
	now := time.Now()
	foldCalled := false
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return []models.Application{app("app-1", now, nil)}, nil
		},
		foldFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			foldCalled = true
			return nil, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{Company: "Acme", Role: "Engineer"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "app-1" {
		t.Errorf("expected app-1, got %q", id)
	}
	if foldCalled {
		t.Error("case-insensitive strategy should not run after an exact hit")
	}
}

func TestFindMatch_CaseInsensitiveFallback(t *testing.T) {
	now := time.Now()
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return nil, nil
		},
		foldFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			if company != "acme inc" {
				t.Errorf("expected parsed company to be passed through, got %q", company)
			}
			return []models.Application{app("app-2", now, nil)}, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{Company: "acme inc", Role: "engineer"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "app-2" {
		t.Errorf("expected app-2, got %q", id)
	}
}

func TestFindMatch_NoMatch(t *testing.T) {
	m := New(&mockFinder{}, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{Company: "Acme", Role: "Engineer"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "" {
		t.Errorf("expected no match, got %q", id)
	}
}

func TestFindMatch_LocationTiebreak(t *testing.T) {
	now := time.Now()
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return []models.Application{
				app("app-sf", now, strPtr("San Francisco")),
				app("app-nyc", now, strPtr("New York")),
			}, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{
		Company:  "Acme",
		Role:     "Engineer",
		Location: strPtr("new york"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "app-nyc" {
		t.Errorf("expected location tiebreak to pick app-nyc, got %q", id)
	}
}

func TestFindMatch_RecencyTiebreak(t *testing.T) {
	newer := time.Now()
	older := newer.Add(-48 * time.Hour)
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return []models.Application{
				app("app-new", newer, nil),
				app("app-old", older, nil),
			}, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{Company: "Acme", Role: "Engineer"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "app-new" {
		t.Errorf("expected recency tiebreak to pick app-new, got %q", id)
	}
}

func TestFindMatch_UnresolvableAmbiguityReturnsNoMatch(t *testing.T) {
	same := time.Now()
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return []models.Application{
				app("app-a", same, nil),
				app("app-b", same, nil),
			}, nil
		},
	}

	m := New(finder, testLogger())
	id, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{Company: "Acme", Role: "Engineer"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "" {
		t.Errorf("expected ambiguity to yield no match, got %q", id)
	}
}

func TestFindMatch_StoreErrorPropagates(t *testing.T) {
	finder := &mockFinder{
		exactFunc: func(ctx context.Context, userID, company, role string) ([]models.Application, error) {
			return nil, errors.New("store unreachable")
		},
	}

	m := New(finder, testLogger())
	_, err := m.FindMatch(context.Background(), "user-1", classifier.ParsedEmail{Company: "Acme", Role: "Engineer"})
	if err == nil {
		t.Fatal("expected store error to propagate, got nil")
	}
}
