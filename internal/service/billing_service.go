package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/essaypilot/essaypilot-api/internal/dto"
	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/repository"
)

// ErrInvalidWebhookPayload indicates the delivery did not match the expected
// event schema.
var ErrInvalidWebhookPayload = errors.New("invalid billing webhook payload")

// EventTypeCheckoutCompleted is the only event type that grants credits.
const EventTypeCheckoutCompleted = "checkout.completed"

const billingEventSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["event_id", "event_type", "user_id"],
	"properties": {
		"event_id": {"type": "string", "minLength": 1},
		"event_type": {"type": "string", "minLength": 1},
		"user_id": {"type": "string", "minLength": 1},
		"credits": {"type": "integer", "minimum": 0},
		"reference": {"type": "string"}
	}
}`

// BillingService processes payment-provider webhook deliveries.
type BillingService interface {
	ProcessWebhook(ctx context.Context, payload []byte) (dto.BillingWebhookResponse, error)
}

type billingService struct {
	events repository.BillingRepository
	ledger CreditLedger
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewBillingService constructs the webhook processor.
func NewBillingService(events repository.BillingRepository, ledger CreditLedger, logger zerolog.Logger) (BillingService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("billing_event.json", bytes.NewReader([]byte(billingEventSchema))); err != nil {
		return nil, fmt.Errorf("load billing event schema: %w", err)
	}
	schema, err := compiler.Compile("billing_event.json")
	if err != nil {
		return nil, fmt.Errorf("compile billing event schema: %w", err)
	}

	return &billingService{
		events: events,
		ledger: ledger,
		schema: schema,
		logger: logger.With().Str("component", "billing_service").Logger(),
	}, nil
}

func (s *billingService) ProcessWebhook(ctx context.Context, payload []byte) (dto.BillingWebhookResponse, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return dto.BillingWebhookResponse{}, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	if err := s.schema.Validate(raw); err != nil {
		return dto.BillingWebhookResponse{}, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	var event dto.BillingWebhookRequest
	if err := json.Unmarshal(payload, &event); err != nil {
		return dto.BillingWebhookResponse{}, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	record := models.BillingEvent{
		EventID:   event.EventID,
		EventType: event.EventType,
		UserID:    event.UserID,
		Credits:   event.Credits,
		Payload:   datatypes.JSONMap(raw),
	}

	if err := s.events.Record(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrBillingEventExists) {
			s.logger.Info().Str("event_id", event.EventID).Msg("billing event already processed, ignoring replay")
			return dto.BillingWebhookResponse{EventID: event.EventID, Processed: false}, nil
		}
		return dto.BillingWebhookResponse{}, err
	}

	if event.EventType != EventTypeCheckoutCompleted || event.Credits <= 0 {
		return dto.BillingWebhookResponse{EventID: event.EventID, Processed: false}, nil
	}

	description := fmt.Sprintf("checkout %s", event.Reference)
	if err := s.ledger.AddCredits(ctx, event.UserID, event.Credits, description); err != nil {
		// Drop the idempotency record so the provider's retry reprocesses
		// this delivery; a paid credit must not be silently lost.
		if deleteErr := s.events.Delete(ctx, event.EventID); deleteErr != nil {
			s.logger.Error().Err(deleteErr).Str("event_id", event.EventID).Msg("failed to roll back billing event record")
		}
		return dto.BillingWebhookResponse{}, fmt.Errorf("add credits: %w", err)
	}

	s.logger.Info().
		Str("event_id", event.EventID).
		Str("user_id", event.UserID).
		Int64("credits", event.Credits).
		Msg("checkout credits applied")

	return dto.BillingWebhookResponse{EventID: event.EventID, Processed: true}, nil
}
