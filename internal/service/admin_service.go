package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/dto"
	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/repository"
)

// AdminService backs the admin console: essay browsing and manual credit
// management.
type AdminService interface {
	ListEssays(ctx context.Context, filter repository.EssayFilter) ([]dto.EssayResponse, int64, error)
	GetUserCredits(ctx context.Context, userID string) (dto.CreditBalanceResponse, error)
	GrantCredits(ctx context.Context, userID string, req dto.GrantCreditsRequest) (dto.CreditBalanceResponse, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

type adminService struct {
	essays    repository.EssayRepository
	users     repository.UserRepository
	ledger    CreditLedger
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminService constructs the admin console service.
func NewAdminService(essays repository.EssayRepository, users repository.UserRepository, ledger CreditLedger, validate *validator.Validate, logger zerolog.Logger) AdminService {
	return &adminService{
		essays:    essays,
		users:     users,
		ledger:    ledger,
		validator: validate,
		logger:    logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) ListEssays(ctx context.Context, filter repository.EssayFilter) ([]dto.EssayResponse, int64, error) {
	essays, total, err := s.essays.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return dto.NewEssayResponseSlice(essays), total, nil
}

func (s *adminService) GetUserCredits(ctx context.Context, userID string) (dto.CreditBalanceResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.CreditBalanceResponse{}, errors.New("user id is required")
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return dto.CreditBalanceResponse{}, err
	}
	return dto.CreditBalanceResponse{UserID: userID, Credits: balance}, nil
}

func (s *adminService) GrantCredits(ctx context.Context, userID string, req dto.GrantCreditsRequest) (dto.CreditBalanceResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.CreditBalanceResponse{}, errors.New("user id is required")
	}

	if err := s.validator.Struct(req); err != nil {
		return dto.CreditBalanceResponse{}, err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "manual grant"
	}

	if err := s.ledger.AddCredits(ctx, userID, req.Credits, description); err != nil {
		return dto.CreditBalanceResponse{}, err
	}

	s.logger.Info().Str("user_id", userID).Int64("credits", req.Credits).Msg("credits granted via admin console")
	return s.GetUserCredits(ctx, userID)
}

func (s *adminService) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return s.users.ListTransactions(ctx, userID, limit)
}
