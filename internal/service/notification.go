package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/observability"
	"github.com/essaypilot/essaypilot-api/pkg/mailer"
)

// FeedbackNotifier delivers generated feedback to the student.
type FeedbackNotifier interface {
	NotifyFeedback(ctx context.Context, essay models.Essay, feedback string) error
}

type emailNotifier struct {
	client     *mailer.Client
	templateID string
	logger     zerolog.Logger
}

// NewEmailNotifier constructs a notifier backed by the transactional mailer.
func NewEmailNotifier(client *mailer.Client, templateID string, logger zerolog.Logger) FeedbackNotifier {
	return &emailNotifier{
		client:     client,
		templateID: templateID,
		logger:     logger.With().Str("component", "email_notifier").Logger(),
	}
}

func (n *emailNotifier) NotifyFeedback(ctx context.Context, essay models.Essay, feedback string) error {
	err := n.client.SendEssayFeedback(ctx, n.templateID, essay.StudentEmail, essay.StudentFirstName, essay.TypeLabel(), feedback)
	if err != nil {
		observability.FeedbackEmails().WithLabelValues("failed").Inc()
		return err
	}

	observability.FeedbackEmails().WithLabelValues("sent").Inc()
	return nil
}

// LogNotifier logs feedback deliveries instead of sending email. Used when no
// mail provider is configured, typically in development.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a logging notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

// NotifyFeedback logs the delivery and returns nil.
func (n *LogNotifier) NotifyFeedback(ctx context.Context, essay models.Essay, feedback string) error {
	n.logger.Info().
		Str("reference_id", essay.ReferenceID).
		Str("email", essay.StudentEmail).
		Msg("feedback ready for delivery")
	return nil
}
