package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newTestService(t *testing.T) (WaitlistService, *MockWaitlistRepository) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockWaitlistRepository(ctrl)
	logger := log.NewLoggerWithJSONOutput()
	return NewWaitlistService(logger, mockRepo, nil), mockRepo
}

func TestWaitlistService_JoinWaitlist(t *testing.T) {
	t.Run("successful join normalizes email and tags provenance", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			ExistsByEmail(gomock.Any(), "user@example.com").
			Return(false, nil)

		mockRepo.EXPECT().
			CreateEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
				assert.Equal(t, "user@example.com", entry.Email)
				assert.Equal(t, models.WaitlistSource, entry.Source)
				assert.Equal(t, "203.0.113.9", entry.IPAddress)
				assert.Equal(t, "curl/8.0", entry.UserAgent)
				entry.ID = 1
				entry.CreatedAt = time.Now()
				return entry, nil
			})

		result, err := service.JoinWaitlist(context.Background(),
			&JoinWaitlistRequest{Email: "  USER@Example.COM "},
			RequestProvenance{IPAddress: "203.0.113.9", UserAgent: "curl/8.0"})

		assert.NoError(t, err)
		assert.Equal(t, uint(1), result.ID)
		assert.Equal(t, "user@example.com", result.Email)
	})

	t.Run("invalid email never reaches the repository", func(t *testing.T) {
		service, _ := newTestService(t)

		result, err := service.JoinWaitlist(context.Background(),
			&JoinWaitlistRequest{Email: "not-an-email"}, RequestProvenance{})

		assert.Nil(t, result)
		assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
	})

	t.Run("pre-check duplicate yields conflict without insert", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			ExistsByEmail(gomock.Any(), "user@example.com").
			Return(true, nil)

		result, err := service.JoinWaitlist(context.Background(),
			&JoinWaitlistRequest{Email: "user@example.com"}, RequestProvenance{})

		assert.Nil(t, result)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("insert-race duplicate yields the same conflict", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			ExistsByEmail(gomock.Any(), "user@example.com").
			Return(false, nil)

		mockRepo.EXPECT().
			CreateEntry(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.NewConflictError("This email is already on the waitlist", nil))

		result, err := service.JoinWaitlist(context.Background(),
			&JoinWaitlistRequest{Email: "user@example.com"}, RequestProvenance{})

		assert.Nil(t, result)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("repository error propagates", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			ExistsByEmail(gomock.Any(), "user@example.com").
			Return(false, apperrors.NewDatabaseError("database error", nil))

		result, err := service.JoinWaitlist(context.Background(),
			&JoinWaitlistRequest{Email: "user@example.com"}, RequestProvenance{})

		assert.Nil(t, result)
		assert.Equal(t, apperrors.ErrorTypeDatabaseError, apperrors.GetErrorType(err))
	})
}

func TestWaitlistService_CheckEmail(t *testing.T) {
	t.Run("existing email", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			ExistsByEmail(gomock.Any(), "user@example.com").
			Return(true, nil)

		exists, err := service.CheckEmail(context.Background(),
			&CheckEmailRequest{Email: "USER@example.com"})

		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("invalid email is rejected before lookup", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.CheckEmail(context.Background(),
			&CheckEmailRequest{Email: "nope"})

		assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
	})
}

func TestWaitlistService_GetStats(t *testing.T) {
	t.Run("counts from the store without a cache", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			CountEntries(gomock.Any()).
			Return(int64(42), nil)

		stats, err := service.GetStats(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, int64(42), stats.TotalCount)
		assert.NotEmpty(t, stats.Timestamp)
	})

	t.Run("serves from cache and skips the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := NewMockWaitlistRepository(ctrl)
		logger := log.NewLoggerWithJSONOutput()
		cache := &fakeStatsCache{values: map[string]string{statsCacheKey: "7"}}
		service := NewWaitlistService(logger, mockRepo, cache)

		stats, err := service.GetStats(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, int64(7), stats.TotalCount)
	})

	t.Run("populates cache after a store count", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRepo := NewMockWaitlistRepository(ctrl)
		logger := log.NewLoggerWithJSONOutput()
		cache := &fakeStatsCache{values: map[string]string{}}
		service := NewWaitlistService(logger, mockRepo, cache)

		mockRepo.EXPECT().
			CountEntries(gomock.Any()).
			Return(int64(12), nil)

		stats, err := service.GetStats(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, int64(12), stats.TotalCount)
		assert.Equal(t, "12", cache.values[statsCacheKey])
	})
}

func TestWaitlistService_ListEntries(t *testing.T) {
	t.Run("normalizes paging and sorting before hitting the store", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		mockRepo.EXPECT().
			ListEntries(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ListQuery) ([]models.WaitlistEntry, int64, error) {
				assert.Equal(t, 1, q.Page)
				assert.Equal(t, MaxPageSize, q.Limit)
				assert.Equal(t, "created_at", q.SortColumn)
				assert.Equal(t, "desc", q.SortOrder)
				return nil, 0, nil
			})

		result, err := service.ListEntries(context.Background(), -5, 9999, "bogus", "upward")

		assert.NoError(t, err)
		assert.Empty(t, result.Entries)
		assert.Equal(t, 0, result.Pagination.TotalPages)
		assert.False(t, result.Pagination.HasNextPage)
		assert.False(t, result.Pagination.HasPrevPage)
	})

	t.Run("computes pagination metadata", func(t *testing.T) {
		service, mockRepo := newTestService(t)

		entries := []models.WaitlistEntry{
			{ID: 3, Email: "c@example.com", Source: models.WaitlistSource, CreatedAt: time.Now()},
			{ID: 4, Email: "d@example.com", Source: models.WaitlistSource, CreatedAt: time.Now()},
		}

		mockRepo.EXPECT().
			ListEntries(gomock.Any(), NewListQuery(2, 2, "email", "asc")).
			Return(entries, int64(5), nil)

		result, err := service.ListEntries(context.Background(), 2, 2, "email", "asc")

		assert.NoError(t, err)
		assert.Len(t, result.Entries, 2)
		assert.Equal(t, 2, result.Pagination.CurrentPage)
		assert.Equal(t, 3, result.Pagination.TotalPages)
		assert.Equal(t, int64(5), result.Pagination.TotalCount)
		assert.True(t, result.Pagination.HasNextPage)
		assert.True(t, result.Pagination.HasPrevPage)
		assert.Equal(t, "email", result.Sorting.SortBy)
		assert.Equal(t, "asc", result.Sorting.SortOrder)
	})
}

type fakeStatsCache struct {
	values map[string]string
}

func (f *fakeStatsCache) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeStatsCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	return nil
}
