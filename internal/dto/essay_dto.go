package dto

import (
	"time"

	"github.com/essaypilot/essaypilot-api/internal/models"
)

// EssayPayload is the essay portion of a submission request.
type EssayPayload struct {
	StudentFirstName  string `json:"student_first_name" validate:"required"`
	StudentLastName   string `json:"student_last_name" validate:"required"`
	StudentEmail      string `json:"student_email" validate:"required,email"`
	StudentCollege    string `json:"student_college"`
	SelectedPrompt    string `json:"selected_prompt" validate:"required"`
	PersonalStatement bool   `json:"personal_statement"`
	EssayContent      string `json:"essay_content" validate:"required"`
}

// UserInfo identifies the submitting account, when one is present.
type UserInfo struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// SubmitEssayRequest is the body accepted by POST /essays. A present
// word_count is the signal that AI feedback was requested.
type SubmitEssayRequest struct {
	Essay     EssayPayload `json:"essay" validate:"required"`
	WordCount *int         `json:"word_count"`
	UserInfo  *UserInfo    `json:"user_info"`
}

// FeedbackRequested reports whether this submission asked for AI feedback.
func (r SubmitEssayRequest) FeedbackRequested() bool {
	return r.WordCount != nil
}

// EssayResponse is the persisted essay row as returned to clients.
type EssayResponse struct {
	ID                uint      `json:"id"`
	ReferenceID       string    `json:"reference_id"`
	StudentFirstName  string    `json:"student_first_name"`
	StudentLastName   string    `json:"student_last_name"`
	StudentEmail      string    `json:"student_email"`
	StudentCollege    string    `json:"student_college,omitempty"`
	SelectedPrompt    string    `json:"selected_prompt"`
	PersonalStatement bool      `json:"personal_statement"`
	EssayContent      string    `json:"essay_content"`
	EssayFeedback     *string   `json:"essay_feedback"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewEssayResponse maps a stored essay onto the response shape.
func NewEssayResponse(essay models.Essay) EssayResponse {
	return EssayResponse{
		ID:                essay.ID,
		ReferenceID:       essay.ReferenceID,
		StudentFirstName:  essay.StudentFirstName,
		StudentLastName:   essay.StudentLastName,
		StudentEmail:      essay.StudentEmail,
		StudentCollege:    essay.StudentCollege,
		SelectedPrompt:    essay.SelectedPrompt,
		PersonalStatement: essay.PersonalStatement,
		EssayContent:      essay.EssayContent,
		EssayFeedback:     essay.EssayFeedback,
		CreatedAt:         essay.CreatedAt,
	}
}

// NewEssayResponseSlice maps a list of stored essays.
func NewEssayResponseSlice(essays []models.Essay) []EssayResponse {
	responses := make([]EssayResponse, 0, len(essays))
	for _, essay := range essays {
		responses = append(responses, NewEssayResponse(essay))
	}
	return responses
}

// SubmitEssaySuccess is the 200 body for a submission.
type SubmitEssaySuccess struct {
	Success bool          `json:"success"`
	Essay   EssayResponse `json:"essay"`
}

// SubmitEssayPaymentRequired is the 402 body when the balance cannot cover
// a feedback generation.
type SubmitEssayPaymentRequired struct {
	Error           string `json:"error"`
	RequiresCredits bool   `json:"requiresCredits"`
}

// SubmitEssayError is the 4xx/5xx body for submission failures.
type SubmitEssayError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
