package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/essaypilot/essaypilot-api/internal/observability"
	"github.com/essaypilot/essaypilot-api/internal/repository"
)

// CreditLedger tracks the per-user balance of feedback credits.
type CreditLedger interface {
	// HasSufficientCredits reports whether the balance covers required.
	// Non-mutating; an unknown user has a zero balance.
	HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error)
	// ConsumeCredits debits amount when the balance covers it, signalling
	// insufficient funds with a false return rather than an error.
	ConsumeCredits(ctx context.Context, userID string, amount int64, description string) (bool, error)
	// AddCredits credits amount to the balance. Errors propagate: silently
	// losing a paid credit is not acceptable.
	AddCredits(ctx context.Context, userID string, amount int64, description string) error
	GetBalance(ctx context.Context, userID string) (int64, error)
}

type creditLedger struct {
	users  repository.UserRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewCreditLedger constructs a ledger backed by the user repository.
func NewCreditLedger(users repository.UserRepository, logger zerolog.Logger) CreditLedger {
	return &creditLedger{
		users:  users,
		logger: logger.With().Str("component", "credit_ledger").Logger(),
		tracer: otel.Tracer("github.com/essaypilot/essaypilot-api/internal/service/credit_ledger"),
	}
}

func (l *creditLedger) HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error) {
	balance, err := l.users.GetCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return balance >= required, nil
}

func (l *creditLedger) ConsumeCredits(ctx context.Context, userID string, amount int64, description string) (bool, error) {
	spanCtx, span := l.tracer.Start(ctx, "credits.consume", trace.WithAttributes(
		attribute.String("credits.user_id", userID),
		attribute.Int64("credits.amount", amount),
	))
	defer span.End()

	consumed, err := l.users.DecrementCredits(spanCtx, userID, amount, description)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	if consumed {
		observability.CreditEvents().WithLabelValues("consumed").Inc()
	} else {
		observability.CreditEvents().WithLabelValues("consume_rejected").Inc()
	}

	return consumed, nil
}

func (l *creditLedger) AddCredits(ctx context.Context, userID string, amount int64, description string) error {
	spanCtx, span := l.tracer.Start(ctx, "credits.add", trace.WithAttributes(
		attribute.String("credits.user_id", userID),
		attribute.Int64("credits.amount", amount),
	))
	defer span.End()

	if err := l.users.IncrementCredits(spanCtx, userID, amount, description); err != nil {
		span.RecordError(err)
		return err
	}

	observability.CreditEvents().WithLabelValues("added").Inc()
	l.logger.Info().Str("user_id", userID).Int64("amount", amount).Str("description", description).Msg("credits added")
	return nil
}

func (l *creditLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	balance, err := l.users.GetCredits(ctx, userID)
	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return balance, err
}
