// Package matcher resolves which existing application a parsed email
// belongs to. Matching is a pure read + selection: strategies are tried in
// priority order and the first hit wins; silent ambiguity is treated as no
// match rather than guessing.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jobhub/inbox-worker/internal/classifier"
	"github.com/jobhub/inbox-worker/internal/models"
	"github.com/jobhub/inbox-worker/internal/repository"
)

// ApplicationFinder is the read-side store surface the matcher needs.
type ApplicationFinder interface {
	GetByID(ctx context.Context, userID, applicationID string) (*models.Application, error)
	FindByCompanyRole(ctx context.Context, userID, company, role string) ([]models.Application, error)
	FindByCompanyRoleFold(ctx context.Context, userID, company, role string) ([]models.Application, error)
}

type Matcher struct {
	apps ApplicationFinder
	log  *logrus.Logger
}

func New(apps ApplicationFinder, log *logrus.Logger) *Matcher {
	return &Matcher{apps: apps, log: log}
}

// strategy is one rung of the match ladder, independently testable through
// the candidates it returns.
type strategy struct {
	name string
	run  func(ctx context.Context) ([]models.Application, error)
}

// FindMatch returns the id of the application the email most likely belongs
// to, or "" when there is no unambiguous match.
func (m *Matcher) FindMatch(ctx context.Context, userID string, parsed classifier.ParsedEmail) (string, error) {
	// An explicit application reference wins outright when it resolves to a
	// live application owned by this user.
	if parsed.ApplicationID != nil {
		app, err := m.apps.GetByID(ctx, userID, *parsed.ApplicationID)
		if err == nil {
			m.log.WithFields(logrus.Fields{
				"application_id": app.ID,
				"strategy":       "explicit_id",
			}).Info("matched application")
			return app.ID, nil
		}
		if !errors.Is(err, repository.ErrApplicationNotFound) {
			return "", fmt.Errorf("resolving referenced application: %w", err)
		}
	}

	strategies := []strategy{
		{
			name: "exact",
			run: func(ctx context.Context) ([]models.Application, error) {
				return m.apps.FindByCompanyRole(ctx, userID, parsed.Company, parsed.Role)
			},
		},
		{
			name: "case_insensitive",
			run: func(ctx context.Context) ([]models.Application, error) {
				return m.apps.FindByCompanyRoleFold(ctx, userID, parsed.Company, parsed.Role)
			},
		},
	}

	for _, s := range strategies {
		candidates, err := s.run(ctx)
		if err != nil {
			return "", fmt.Errorf("%s match: %w", s.name, err)
		}
		if len(candidates) == 0 {
			continue
		}

		id, ok := m.selectCandidate(candidates, parsed.Location)
		if !ok {
			m.log.WithFields(logrus.Fields{
				"user_id":    userID,
				"company":    parsed.Company,
				"role":       parsed.Role,
				"strategy":   s.name,
				"candidates": len(candidates),
			}).Warn("ambiguous application match, refusing to guess")
			return "", nil
		}

		m.log.WithFields(logrus.Fields{
			"application_id": id,
			"strategy":       s.name,
		}).Info("matched application")
		return id, nil
	}

	return "", nil
}

// selectCandidate narrows a candidate set: a location equality tiebreak
// first, then most-recently-updated. Candidates arrive sorted by
// last_updated_at descending; two candidates still tied on that timestamp
// are ambiguous and yield no match.
func (m *Matcher) selectCandidate(candidates []models.Application, location *string) (string, bool) {
	if len(candidates) == 1 {
		return candidates[0].ID, true
	}

	if location != nil {
		var narrowed []models.Application
		for _, app := range candidates {
			if app.Location != nil && strings.EqualFold(strings.TrimSpace(*app.Location), strings.TrimSpace(*location)) {
				narrowed = append(narrowed, app)
			}
		}
		if len(narrowed) == 1 {
			return narrowed[0].ID, true
		}
		if len(narrowed) > 1 {
			candidates = narrowed
		}
	}

	// Recency tiebreak on last_updated_at.
	if candidates[0].LastUpdatedAt.After(candidates[1].LastUpdatedAt) {
		return candidates[0].ID, true
	}
	return "", false
}
