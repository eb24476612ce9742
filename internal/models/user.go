package models

import "time"

// User holds the account-level state the feedback workflow cares about:
// an identity and a non-negative credit balance.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Email      string    `gorm:"size:255;index" json:"email"`
	Credits    int64     `gorm:"not null;default:0" json:"credits"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Credit transaction directions.
const (
	CreditDirectionCredit = "credit"
	CreditDirectionDebit  = "debit"
)

// CreditTransaction is an audit row recorded for every balance change.
type CreditTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Direction   string    `gorm:"size:16;not null" json:"direction"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
