package waitlist

import (
	"context"
	"fmt"
	"testing"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) WaitlistRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.WaitlistEntry{}))

	return NewWaitlistRepository(config.NewStaticDatabase(db))
}

func seedEntries(t *testing.T, repo WaitlistRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := repo.CreateEntry(context.Background(), &models.WaitlistEntry{
			Email:  fmt.Sprintf("user%02d@example.com", i),
			Source: models.WaitlistSource,
		})
		require.NoError(t, err)
	}
}

func TestWaitlistRepository_CreateEntry(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateEntry(ctx, &models.WaitlistEntry{
		Email:  "user@example.com",
		Source: models.WaitlistSource,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		_, err := repo.CreateEntry(ctx, &models.WaitlistEntry{
			Email:  "user@example.com",
			Source: models.WaitlistSource,
		})
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestWaitlistRepository_ExistsByEmail(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	exists, err := repo.ExistsByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.CreateEntry(ctx, &models.WaitlistEntry{
		Email:  "user@example.com",
		Source: models.WaitlistSource,
	})
	require.NoError(t, err)

	exists, err = repo.ExistsByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	// Lookup is exact; normalization happens before the repository.
	exists, err = repo.ExistsByEmail(ctx, "USER@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWaitlistRepository_CountEntries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	count, err := repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	seedEntries(t, repo, 7)

	count, err = repo.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestWaitlistRepository_ListEntries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seedEntries(t, repo, 25)

	t.Run("first page ascending by email", func(t *testing.T) {
		entries, total, err := repo.ListEntries(ctx, NewListQuery(1, 10, "email", "asc"))
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)
		require.Len(t, entries, 10)
		assert.Equal(t, "user00@example.com", entries[0].Email)
		assert.Equal(t, "user09@example.com", entries[9].Email)
	})

	t.Run("offset pages do not overlap", func(t *testing.T) {
		entries, _, err := repo.ListEntries(ctx, NewListQuery(3, 10, "email", "asc"))
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, "user20@example.com", entries[0].Email)
	})

	t.Run("projection excludes provenance", func(t *testing.T) {
		_, err := repo.CreateEntry(ctx, &models.WaitlistEntry{
			Email:     "aa-tracked@example.com",
			Source:    models.WaitlistSource,
			IPAddress: "203.0.113.9",
			UserAgent: "curl/8.0",
		})
		require.NoError(t, err)

		entries, _, err := repo.ListEntries(ctx, NewListQuery(1, 1, "email", "asc"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "aa-tracked@example.com", entries[0].Email)
		assert.Empty(t, entries[0].IPAddress)
		assert.Empty(t, entries[0].UserAgent)
		assert.NotZero(t, entries[0].ID)
	})

	t.Run("descending order reverses the page", func(t *testing.T) {
		entries, _, err := repo.ListEntries(ctx, NewListQuery(1, 5, "email", "desc"))
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, "user24@example.com", entries[0].Email)
	})
}
