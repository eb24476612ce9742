package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/essaypilot/essaypilot-api/internal/models"
)

// UserRepository reads and mutates per-user credit balances. Balance changes
// go through conditional single-statement updates so concurrent submissions
// can never drive a balance negative.
type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (models.User, error)
	GetCredits(ctx context.Context, externalID string) (int64, error)
	// DecrementCredits subtracts amount only when the current balance covers
	// it. Returns false, without mutating, when it does not.
	DecrementCredits(ctx context.Context, externalID string, amount int64, description string) (bool, error)
	// IncrementCredits adds amount, creating the user row when it does not
	// exist yet.
	IncrementCredits(ctx context.Context, externalID string, amount int64, description string) error
	ListTransactions(ctx context.Context, externalID string, limit int) ([]models.CreditTransaction, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	return user, err
}

func (r *userRepository) GetCredits(ctx context.Context, externalID string) (int64, error) {
	user, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

func (r *userRepository) DecrementCredits(ctx context.Context, externalID string, amount int64, description string) (bool, error) {
	consumed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("external_id = ? AND credits >= ?", externalID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var user models.User
		if err := tx.Where("external_id = ?", externalID).First(&user).Error; err != nil {
			return err
		}

		consumed = true
		return tx.Create(&models.CreditTransaction{
			UserID:      user.ID,
			Direction:   models.CreditDirectionDebit,
			Amount:      amount,
			Description: description,
		}).Error
	})
	return consumed, err
}

func (r *userRepository) IncrementCredits(ctx context.Context, externalID string, amount int64, description string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where(models.User{ExternalID: externalID}).FirstOrCreate(&user).Error; err != nil {
			return err
		}

		result := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount))
		if result.Error != nil {
			return result.Error
		}

		return tx.Create(&models.CreditTransaction{
			UserID:      user.ID,
			Direction:   models.CreditDirectionCredit,
			Amount:      amount,
			Description: description,
		}).Error
	})
}

func (r *userRepository) ListTransactions(ctx context.Context, externalID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	user, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	var transactions []models.CreditTransaction
	err = r.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions).
		Error
	return transactions, err
}
