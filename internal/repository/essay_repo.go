package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/essaypilot/essaypilot-api/internal/models"
)

// EssayFilter narrows admin essay listings.
type EssayFilter struct {
	Search   string
	Page     int
	PageSize int
}

// EssayRepository persists essay submissions and their feedback.
type EssayRepository interface {
	Create(ctx context.Context, essay *models.Essay) error
	GetByID(ctx context.Context, id uint) (models.Essay, error)
	GetByReference(ctx context.Context, referenceID string) (models.Essay, error)
	AttachFeedback(ctx context.Context, id uint, feedback string) error
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]models.Essay, error)
	CountPersonalStatementsSince(ctx context.Context, email string, since time.Time) (int64, error)
	List(ctx context.Context, filter EssayFilter) ([]models.Essay, int64, error)
}

type essayRepository struct {
	db *gorm.DB
}

// NewEssayRepository constructs a repository backed by GORM.
func NewEssayRepository(db *gorm.DB) EssayRepository {
	return &essayRepository{db: db}
}

func (r *essayRepository) Create(ctx context.Context, essay *models.Essay) error {
	return r.db.WithContext(ctx).Create(essay).Error
}

func (r *essayRepository) GetByID(ctx context.Context, id uint) (models.Essay, error) {
	var essay models.Essay
	err := r.db.WithContext(ctx).First(&essay, id).Error
	return essay, err
}

func (r *essayRepository) GetByReference(ctx context.Context, referenceID string) (models.Essay, error) {
	var essay models.Essay
	err := r.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&essay).Error
	return essay, err
}

func (r *essayRepository) AttachFeedback(ctx context.Context, id uint, feedback string) error {
	return r.db.WithContext(ctx).
		Model(&models.Essay{}).
		Where("id = ?", id).
		Update("essay_feedback", feedback).
		Error
}

func (r *essayRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]models.Essay, error) {
	if limit <= 0 {
		limit = 20
	}

	var essays []models.Essay
	err := r.db.WithContext(ctx).
		Where("student_email = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&essays).
		Error
	return essays, err
}

func (r *essayRepository) CountPersonalStatementsSince(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Essay{}).
		Where("student_email = ? AND personal_statement = ? AND created_at >= ?",
			strings.ToLower(strings.TrimSpace(email)), true, since).
		Count(&count).
		Error
	return count, err
}

func (r *essayRepository) List(ctx context.Context, filter EssayFilter) ([]models.Essay, int64, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = 25
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	query := r.db.WithContext(ctx).Model(&models.Essay{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(student_email) LIKE ? OR LOWER(student_first_name) LIKE ? OR LOWER(student_last_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var essays []models.Essay
	err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&essays).
		Error
	return essays, total, err
}
