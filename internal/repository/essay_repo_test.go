package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/essaypilot/essaypilot-api/internal/models"
)

var testDBCounter int

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Essay{}, &models.User{}, &models.CreditTransaction{}, &models.BillingEvent{}))
	return db
}

func TestEssayRepositoryAttachFeedback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEssayRepository(db)

	essay := models.Essay{
		ReferenceID:      "ref-1",
		StudentFirstName: "Ada",
		StudentLastName:  "Lovelace",
		StudentEmail:     "ada@example.com",
		SelectedPrompt:   "Describe a challenge you overcame.",
		EssayContent:     "Essay body.",
	}
	require.NoError(t, repo.Create(context.Background(), &essay))
	require.Nil(t, essay.EssayFeedback)

	require.NoError(t, repo.AttachFeedback(context.Background(), essay.ID, "## Overall Verdict\nStrong draft."))

	stored, err := repo.GetByID(context.Background(), essay.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EssayFeedback)
	require.Contains(t, *stored.EssayFeedback, "Overall Verdict")
}

func TestEssayRepositoryCountPersonalStatementsSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEssayRepository(db)
	now := time.Now()

	seed := []models.Essay{
		{ReferenceID: "ps-old", StudentEmail: "kim@example.com", PersonalStatement: true, SelectedPrompt: "p", EssayContent: "e", StudentFirstName: "K", StudentLastName: "L", CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{ReferenceID: "ps-1", StudentEmail: "kim@example.com", PersonalStatement: true, SelectedPrompt: "p", EssayContent: "e", StudentFirstName: "K", StudentLastName: "L", CreatedAt: now.Add(-2 * 24 * time.Hour)},
		{ReferenceID: "ps-2", StudentEmail: "kim@example.com", PersonalStatement: true, SelectedPrompt: "p", EssayContent: "e", StudentFirstName: "K", StudentLastName: "L", CreatedAt: now.Add(-1 * time.Hour)},
		{ReferenceID: "supp-1", StudentEmail: "kim@example.com", PersonalStatement: false, SelectedPrompt: "p", EssayContent: "e", StudentFirstName: "K", StudentLastName: "L", CreatedAt: now.Add(-1 * time.Hour)},
		{ReferenceID: "ps-other", StudentEmail: "lee@example.com", PersonalStatement: true, SelectedPrompt: "p", EssayContent: "e", StudentFirstName: "M", StudentLastName: "N", CreatedAt: now.Add(-1 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	count, err := repo.CountPersonalStatementsSince(context.Background(), "kim@example.com", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), count, "only personal statements inside the window count")
}

func TestEssayRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEssayRepository(db)
	now := time.Now()

	older := models.Essay{ReferenceID: "a", StudentEmail: "alice@example.com", StudentFirstName: "Alice", StudentLastName: "Johnson", SelectedPrompt: "p", EssayContent: "e", CreatedAt: now.Add(-2 * time.Hour)}
	newer := models.Essay{ReferenceID: "b", StudentEmail: "bob@example.com", StudentFirstName: "Bob", StudentLastName: "Stone", SelectedPrompt: "p", EssayContent: "e", CreatedAt: now.Add(-1 * time.Hour)}
	require.NoError(t, db.Create(&older).Error)
	require.NoError(t, db.Create(&newer).Error)

	essays, total, err := repo.List(context.Background(), EssayFilter{Search: "alice", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, essays, 1)
	require.Equal(t, "alice@example.com", essays[0].StudentEmail)

	essays, total, err = repo.List(context.Background(), EssayFilter{PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "bob@example.com", essays[0].StudentEmail, "expected newest record first")
}
