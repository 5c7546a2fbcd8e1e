package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"gorm.io/gorm"
)

const (
	// DefaultPageSize applies when the caller omits limit.
	DefaultPageSize = 20
	// MaxPageSize caps limit so a single admin request cannot dump the table.
	MaxPageSize = 100
)

// duplicateEmailMessage is the single conflict message, whether the
// duplicate is caught by the pre-check or by the unique index at insert.
const duplicateEmailMessage = "This email is already on the waitlist"

// sortColumns maps exposed sort keys to the columns they order by. Sort
// input never reaches SQL except through this table.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"email":     "email",
	"source":    "source",
}

// ListQuery is a fully-normalized listing request: the constructor is the
// only way to build one, so the repository can trust its fields.
type ListQuery struct {
	Page       int
	Limit      int
	SortBy     string
	SortColumn string
	SortOrder  string
}

// NewListQuery normalizes raw listing parameters: page below 1 becomes 1,
// limit defaults to DefaultPageSize and is clamped to MaxPageSize, sortBy
// falls back to createdAt when not in the allow-list, and any order other
// than asc becomes desc.
func NewListQuery(page, limit int, sortBy, sortOrder string) ListQuery {
	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	column, ok := sortColumns[sortBy]
	if !ok {
		sortBy = "createdAt"
		column = sortColumns[sortBy]
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return ListQuery{
		Page:       page,
		Limit:      limit,
		SortBy:     sortBy,
		SortColumn: column,
		SortOrder:  sortOrder,
	}
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

type WaitlistRepository interface {
	// CreateEntry persists a new entry. A unique-index violation on email is
	// reported as a conflict so concurrent joins of the same address resolve
	// to exactly one success.
	CreateEntry(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error)
	// ExistsByEmail is a point lookup with no side effects.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// CountEntries returns the total number of entries.
	CountEntries(ctx context.Context) (int64, error)
	// ListEntries returns one page projected to the admin listing fields,
	// plus the total count for pagination metadata.
	ListEntries(ctx context.Context, query ListQuery) ([]models.WaitlistEntry, int64, error)
}

type waitlistRepository struct {
	db config.Database
}

func NewWaitlistRepository(db config.Database) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (wr *waitlistRepository) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
	db, err := wr.db.DB(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("database is unavailable", err)
	}

	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, apperrors.NewConflictError(duplicateEmailMessage, err)
		}
		return nil, apperrors.NewDatabaseError("unable to create waitlist entry", err)
	}

	return entry, nil
}

func (wr *waitlistRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	db, err := wr.db.DB(ctx)
	if err != nil {
		return false, apperrors.NewDatabaseError("database is unavailable", err)
	}

	var ids []uint
	err = db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("email = ?", email).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, apperrors.NewDatabaseError("unable to look up waitlist entry", err)
	}

	return len(ids) > 0, nil
}

func (wr *waitlistRepository) CountEntries(ctx context.Context) (int64, error) {
	db, err := wr.db.DB(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("database is unavailable", err)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&count).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	return count, nil
}

func (wr *waitlistRepository) ListEntries(ctx context.Context, query ListQuery) ([]models.WaitlistEntry, int64, error) {
	db, err := wr.db.DB(ctx)
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("database is unavailable", err)
	}

	var total int64
	if err := db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	var entries []models.WaitlistEntry
	err = db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Select("id", "email", "created_at", "source").
		Order(fmt.Sprintf("%s %s", query.SortColumn, query.SortOrder)).
		Limit(query.Limit).
		Offset(query.offset()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}

	return entries, total, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}
