package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/service"
	"github.com/essaypilot/essaypilot-api/internal/utils"
)

// BillingHandler handles payment-provider webhook deliveries.
type BillingHandler struct {
	service service.BillingService
	logger  zerolog.Logger
}

// NewBillingHandler constructs a billing handler.
func NewBillingHandler(service service.BillingService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		service: service,
		logger:  logger.With().Str("component", "billing_handler").Logger(),
	}
}

// Register wires billing routes.
func (h *BillingHandler) Register(router fiber.Router) {
	router.Post("/webhook", h.webhook)
}

func (h *BillingHandler) webhook(c *fiber.Ctx) error {
	response, err := h.service.ProcessWebhook(c.Context(), c.Body())
	if err != nil {
		if errors.Is(err, service.ErrInvalidWebhookPayload) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid webhook payload")
		}
		h.logger.Error().Err(err).Msg("failed to process billing webhook")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to process webhook")
	}

	return utils.SendSuccess(c, "webhook processed", response)
}
