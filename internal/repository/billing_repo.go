package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/essaypilot/essaypilot-api/internal/models"
)

// ErrBillingEventExists indicates a webhook delivery was already recorded.
var ErrBillingEventExists = errors.New("billing event already recorded")

// BillingRepository records processed payment webhook deliveries.
type BillingRepository interface {
	// Record inserts the event, returning ErrBillingEventExists when the
	// event id was seen before.
	Record(ctx context.Context, event *models.BillingEvent) error
	// Delete removes a recorded event so a provider retry can reprocess it.
	Delete(ctx context.Context, eventID string) error
}

type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository constructs a repository backed by GORM.
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

func (r *billingRepository) Record(ctx context.Context, event *models.BillingEvent) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BillingEvent{}).
		Where("event_id = ?", event.EventID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrBillingEventExists
	}

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrBillingEventExists
		}
		return err
	}

	return nil
}

func (r *billingRepository) Delete(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&models.BillingEvent{}).
		Error
}
