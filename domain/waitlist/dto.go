package waitlist

import (
	"github.com/akeren/waitlist-api/internal/models"
	"github.com/akeren/waitlist-api/pkg/constants"
)

type JoinWaitlistRequest struct {
	Email string `json:"email" binding:"required"`
}

type CheckEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

type JoinWaitlistResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type StatsResponse struct {
	TotalCount int64  `json:"totalCount"`
	Timestamp  string `json:"timestamp"`
}

// WaitlistEntryItem is the admin listing projection. Provenance fields
// (ipAddress, userAgent) are intentionally absent.
type WaitlistEntryItem struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	Source    string `json:"source"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Limit       int   `json:"limit"`
}

type Sorting struct {
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

type AdminListResponse struct {
	Entries    []WaitlistEntryItem `json:"entries"`
	Pagination Pagination          `json:"pagination"`
	Sorting    Sorting             `json:"sorting"`
}

// ========================================
// Mappers
// ========================================

func ToJoinWaitlistResponse(entry *models.WaitlistEntry) JoinWaitlistResponse {
	if entry == nil {
		return JoinWaitlistResponse{}
	}
	return JoinWaitlistResponse{
		ID:    entry.ID,
		Email: entry.Email,
	}
}

func ToWaitlistEntryItem(entry *models.WaitlistEntry) WaitlistEntryItem {
	if entry == nil {
		return WaitlistEntryItem{}
	}
	return WaitlistEntryItem{
		ID:        entry.ID,
		Email:     entry.Email,
		CreatedAt: entry.CreatedAt.Format(constants.RFC3339DateTimeFormat),
		Source:    entry.Source,
	}
}
