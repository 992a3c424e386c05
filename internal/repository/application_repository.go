package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jobhub/inbox-worker/internal/models"
)

var ErrApplicationNotFound = errors.New("application not found")

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// GetByID retrieves an application by id, scoped to its owner
func (r *ApplicationRepository) GetByID(ctx context.Context, userID, applicationID string) (*models.Application, error) {
	var app models.Application
	result := r.db.WithContext(ctx).
		First(&app, "application_id = ? AND user_id = ?", applicationID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", result.Error)
	}
	return &app, nil
}

// FindByCompanyRole retrieves the user's applications matching company and
// role exactly (case-sensitive).
func (r *ApplicationRepository) FindByCompanyRole(ctx context.Context, userID, company, role string) ([]models.Application, error) {
	var apps []models.Application
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND company = ? AND role = ?", userID, company, role).
		Order("last_updated_at DESC").
		Find(&apps)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find applications: %w", result.Error)
	}
	return apps, nil
}

// FindByCompanyRoleFold retrieves the user's applications matching company
// and role after trimming and lowercasing both sides.
func (r *ApplicationRepository) FindByCompanyRoleFold(ctx context.Context, userID, company, role string) ([]models.Application, error) {
	var apps []models.Application
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(TRIM(company)) = LOWER(TRIM(?)) AND LOWER(TRIM(role)) = LOWER(TRIM(?))",
			userID, company, role).
		Order("last_updated_at DESC").
		Find(&apps)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find applications: %w", result.Error)
	}
	return apps, nil
}

// UpdateFields applies a field-level update to an application. When
// prevUpdatedAt is non-nil the write is guarded by a compare-and-set on
// last_updated_at, and the returned count is 0 if a concurrent writer got
// there first.
func (r *ApplicationRepository) UpdateFields(ctx context.Context, applicationID string, prevUpdatedAt *time.Time, fields map[string]interface{}) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}

	q := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("application_id = ?", applicationID)
	if prevUpdatedAt != nil {
		q = q.Where("last_updated_at = ?", *prevUpdatedAt)
	}

	result := q.Updates(fields)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update application: %w", result.Error)
	}
	return result.RowsAffected, nil
}
