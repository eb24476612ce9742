package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/dto"
	"github.com/essaypilot/essaypilot-api/internal/repository"
	"github.com/essaypilot/essaypilot-api/internal/service"
	"github.com/essaypilot/essaypilot-api/internal/utils"
)

// AdminHandler exposes the admin console API.
type AdminHandler struct {
	service service.AdminService
	logger  zerolog.Logger
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(service service.AdminService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires admin routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/essays", h.listEssays)
	router.Get("/users/:id/credits", h.getCredits)
	router.Post("/users/:id/credits", h.grantCredits)
	router.Get("/users/:id/transactions", h.listTransactions)
}

func (h *AdminHandler) listEssays(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	essays, total, err := h.service.ListEssays(c.Context(), repository.EssayFilter{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list essays")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list essays")
	}

	return utils.SendSuccess(c, "essays retrieved", fiber.Map{
		"essays": essays,
		"total":  total,
	})
}

func (h *AdminHandler) getCredits(c *fiber.Ctx) error {
	balance, err := h.service.GetUserCredits(c.Context(), c.Params("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read credit balance")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read credit balance")
	}

	return utils.SendSuccess(c, "balance retrieved", balance)
}

func (h *AdminHandler) grantCredits(c *fiber.Ctx) error {
	var payload dto.GrantCreditsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	balance, err := h.service.GrantCredits(c.Context(), c.Params("id"), payload)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return utils.SendError(c, fiber.StatusBadRequest, "credits must be a positive amount")
		}
		h.logger.Error().Err(err).Msg("failed to grant credits")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to grant credits")
	}

	return utils.SendSuccess(c, "credits granted", balance)
}

func (h *AdminHandler) listTransactions(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	transactions, err := h.service.ListTransactions(c.Context(), c.Params("id"), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list transactions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list transactions")
	}

	return utils.SendSuccess(c, "transactions retrieved", transactions)
}
