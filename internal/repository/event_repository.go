package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jobhub/inbox-worker/internal/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new application event. Events are immutable; there is no
// update path.
func (r *EventRepository) Create(ctx context.Context, event *models.ApplicationEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create application event: %w", err)
	}
	return nil
}
