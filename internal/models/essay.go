package models

import "time"

// Essay is a single submission by a student. One row per submission; the row
// is never updated after creation except to attach the generated feedback.
type Essay struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ReferenceID       string    `gorm:"size:64;uniqueIndex" json:"reference_id"`
	StudentFirstName  string    `gorm:"size:128;not null" json:"student_first_name"`
	StudentLastName   string    `gorm:"size:128;not null" json:"student_last_name"`
	StudentEmail      string    `gorm:"size:255;index;not null" json:"student_email"`
	StudentCollege    string    `gorm:"size:255" json:"student_college,omitempty"`
	SelectedPrompt    string    `gorm:"type:text;not null" json:"selected_prompt"`
	PersonalStatement bool      `gorm:"not null;default:false;index" json:"personal_statement"`
	EssayContent      string    `gorm:"type:text;not null" json:"essay_content"`
	EssayFeedback     *string   `gorm:"type:text" json:"essay_feedback"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TypeLabel returns the human-readable essay type used in notifications.
func (e Essay) TypeLabel() string {
	if e.PersonalStatement {
		return "Personal Statement"
	}
	return "Supplemental Essay"
}
