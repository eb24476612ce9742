package models

import (
	"time"

	"gorm.io/datatypes"
)

// BillingEvent records a processed payment-provider webhook delivery. The
// unique index on EventID makes replayed deliveries a no-op.
type BillingEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	EventID   string            `gorm:"size:128;uniqueIndex;not null" json:"event_id"`
	EventType string            `gorm:"size:64;not null" json:"event_type"`
	UserID    string            `gorm:"size:64;index" json:"user_id"`
	Credits   int64             `json:"credits"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}
