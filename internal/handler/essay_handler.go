package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/dto"
	"github.com/essaypilot/essaypilot-api/internal/service"
	"github.com/essaypilot/essaypilot-api/internal/utils"
)

// EssayHandler handles essay submissions and listings.
type EssayHandler struct {
	service service.EssayService
	logger  zerolog.Logger
}

// NewEssayHandler constructs an essay handler.
func NewEssayHandler(service service.EssayService, logger zerolog.Logger) *EssayHandler {
	return &EssayHandler{
		service: service,
		logger:  logger.With().Str("component", "essay_handler").Logger(),
	}
}

// Register wires essay routes.
func (h *EssayHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("", h.list)
}

func (h *EssayHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitEssayRequest
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.SubmitEssayError{Error: "invalid request body"})
	}

	essay, err := h.service.Submit(c.Context(), payload)
	if err != nil {
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs):
			return c.Status(fiber.StatusBadRequest).JSON(dto.SubmitEssayError{
				Error:   "missing or invalid required fields",
				Details: validationErrs.Error(),
			})
		case errors.Is(err, service.ErrInsufficientCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(dto.SubmitEssayPaymentRequired{
				Error:           "insufficient credits to generate feedback",
				RequiresCredits: true,
			})
		default:
			h.logger.Error().Err(err).Msg("essay submission failed")
			return c.Status(fiber.StatusInternalServerError).JSON(dto.SubmitEssayError{
				Error:   "failed to process essay submission",
				Details: err.Error(),
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(dto.SubmitEssaySuccess{Success: true, Essay: essay})
}

func (h *EssayHandler) list(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "email query parameter is required")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	essays, err := h.service.ListByEmail(c.Context(), email, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list essays")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list essays")
	}

	return utils.SendSuccess(c, "essays retrieved", essays)
}
