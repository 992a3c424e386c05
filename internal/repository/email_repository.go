package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jobhub/inbox-worker/internal/models"
)

var (
	ErrEmailNotFound = errors.New("email not found")

	// ErrDuplicateEmail is returned when an insert hits the
	// (user_id, external_email_id) unique index. This is the authoritative
	// dedup signal; the gate's pre-check is only best-effort.
	ErrDuplicateEmail = errors.New("email already processed")
)

type EmailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// Create inserts the raw email audit row. A unique-constraint violation is
// converted to ErrDuplicateEmail so concurrent deliveries of the same
// message collapse into a duplicate outcome instead of a hard failure.
func (r *EmailRepository) Create(ctx context.Context, email *models.Email) error {
	if err := r.db.WithContext(ctx).Create(email).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create email: %w", err)
	}
	return nil
}

// ExistsByExternalID reports whether an email with this source-system id has
// already been recorded for the user.
func (r *EmailRepository) ExistsByExternalID(ctx context.Context, userID, externalEmailID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("user_id = ? AND external_email_id = ?", userID, externalEmailID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check for existing email: %w", result.Error)
	}
	return count > 0, nil
}

// GetByExternalID retrieves the email recorded for a source-system id.
func (r *EmailRepository) GetByExternalID(ctx context.Context, userID, externalEmailID string) (*models.Email, error) {
	var email models.Email
	result := r.db.WithContext(ctx).
		First(&email, "user_id = ? AND external_email_id = ?", userID, externalEmailID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("failed to get email: %w", result.Error)
	}
	return &email, nil
}

// LinkApplication sets the application the email belongs to.
func (r *EmailRepository) LinkApplication(ctx context.Context, emailID, applicationID string) error {
	result := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("email_id = ?", emailID).
		Update("application_id", applicationID)
	if result.Error != nil {
		return fmt.Errorf("failed to link email to application: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// MarkParsed stamps parsed_at and the classifier confidence after
// classification completes, regardless of which branch ran.
func (r *EmailRepository) MarkParsed(ctx context.Context, emailID string, confidence *float64) error {
	result := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("email_id = ?", emailID).
		Updates(map[string]interface{}{
			"parsed_at":        time.Now(),
			"confidence_score": confidence,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark email parsed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEmailNotFound
	}
	return nil
}
