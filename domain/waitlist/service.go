package waitlist

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	"github.com/akeren/waitlist-api/pkg/constants"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
)

const (
	statsCacheKey = "waitlist:stats:total"
	statsCacheTTL = 30 * time.Second
)

// StatsCache is the slice of the cache the stats path needs. The application
// cache satisfies it; a nil cache disables caching entirely.
type StatsCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RequestProvenance is captured from the joining request and stored with the
// entry. It never appears in any response.
type RequestProvenance struct {
	IPAddress string
	UserAgent string
}

type WaitlistService interface {
	// JoinWaitlist normalizes and validates the email, then performs exactly
	// one insert. A duplicate, whether seen by the pre-check or raised by the
	// unique index, yields the same conflict error.
	JoinWaitlist(ctx context.Context, req *JoinWaitlistRequest, provenance RequestProvenance) (*JoinWaitlistResponse, error)

	// CheckEmail reports whether the normalized email is on the waitlist.
	CheckEmail(ctx context.Context, req *CheckEmailRequest) (bool, error)

	// GetStats returns the entry count with a generation timestamp.
	GetStats(ctx context.Context) (*StatsResponse, error)

	// ListEntries returns one admin page with pagination and sorting metadata.
	ListEntries(ctx context.Context, page, limit int, sortBy, sortOrder string) (*AdminListResponse, error)
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	statsCache StatsCache
}

func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, statsCache StatsCache) WaitlistService {
	return &waitlistService{
		logger:     logger,
		repository: repository,
		statsCache: statsCache,
	}
}

func (s *waitlistService) JoinWaitlist(ctx context.Context, req *JoinWaitlistRequest, provenance RequestProvenance) (*JoinWaitlistResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("JoinWaitlist received empty request")
		return nil, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	email := NormalizeEmail(req.Email)
	if !IsValidEmail(email) {
		return nil, apperrors.NewInvalidRequestError("Please provide a valid email address", nil)
	}

	// Fast path: answer 409 without attempting an insert. The unique index
	// remains the authority for the race where two joins pass this check.
	exists, err := s.repository.ExistsByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to check waitlist membership", "error", err)
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflictError(duplicateEmailMessage, nil)
	}

	entry := &models.WaitlistEntry{
		Email:     email,
		Source:    models.WaitlistSource,
		IPAddress: provenance.IPAddress,
		UserAgent: provenance.UserAgent,
	}

	created, err := s.repository.CreateEntry(ctx, entry)
	if err != nil {
		if apperrors.IsConflict(err) {
			// Lost the insert race; same outcome as the pre-check.
			return nil, err
		}
		logger.Error("Failed to create waitlist entry", "error", err)
		return nil, err
	}

	logger.Info("Waitlist entry created", "id", created.ID)

	response := ToJoinWaitlistResponse(created)
	return &response, nil
}

func (s *waitlistService) CheckEmail(ctx context.Context, req *CheckEmailRequest) (bool, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("CheckEmail received empty request")
		return false, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	email := NormalizeEmail(req.Email)
	if !IsValidEmail(email) {
		return false, apperrors.NewInvalidRequestError("Please provide a valid email address", nil)
	}

	exists, err := s.repository.ExistsByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to check waitlist membership", "error", err)
		return false, err
	}

	return exists, nil
}

func (s *waitlistService) GetStats(ctx context.Context) (*StatsResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if count, ok := s.cachedCount(ctx, logger); ok {
		return &StatsResponse{
			TotalCount: count,
			Timestamp:  time.Now().UTC().Format(constants.RFC3339DateTimeFormat),
		}, nil
	}

	count, err := s.repository.CountEntries(ctx)
	if err != nil {
		logger.Error("Failed to count waitlist entries", "error", err)
		return nil, err
	}

	s.storeCount(ctx, logger, count)

	return &StatsResponse{
		TotalCount: count,
		Timestamp:  time.Now().UTC().Format(constants.RFC3339DateTimeFormat),
	}, nil
}

// cachedCount consults the stats cache. Any cache failure falls through to
// the store; stats must not depend on Redis being up.
func (s *waitlistService) cachedCount(ctx context.Context, logger *log.Logger) (int64, bool) {
	if s.statsCache == nil {
		return 0, false
	}

	raw, err := s.statsCache.Get(ctx, statsCacheKey)
	if err != nil {
		logger.Warn("Stats cache read failed", "error", err)
		return 0, false
	}
	if raw == "" {
		return 0, false
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Warn("Stats cache held a non-numeric value", "value", raw)
		return 0, false
	}

	return count, true
}

func (s *waitlistService) storeCount(ctx context.Context, logger *log.Logger, count int64) {
	if s.statsCache == nil {
		return
	}

	if err := s.statsCache.Set(ctx, statsCacheKey, strconv.FormatInt(count, 10), statsCacheTTL); err != nil {
		logger.Warn("Stats cache write failed", "error", err)
	}
}

func (s *waitlistService) ListEntries(ctx context.Context, page, limit int, sortBy, sortOrder string) (*AdminListResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	query := NewListQuery(page, limit, sortBy, sortOrder)

	entries, total, err := s.repository.ListEntries(ctx, query)
	if err != nil {
		logger.Error("Failed to list waitlist entries", "error", err)
		return nil, err
	}

	items := make([]WaitlistEntryItem, 0, len(entries))
	for i := range entries {
		items = append(items, ToWaitlistEntryItem(&entries[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(query.Limit)))

	return &AdminListResponse{
		Entries: items,
		Pagination: Pagination{
			CurrentPage: query.Page,
			TotalPages:  totalPages,
			TotalCount:  total,
			HasNextPage: query.Page < totalPages,
			HasPrevPage: query.Page > 1,
			Limit:       query.Limit,
		},
		Sorting: Sorting{
			SortBy:    query.SortBy,
			SortOrder: query.SortOrder,
		},
	}, nil
}
