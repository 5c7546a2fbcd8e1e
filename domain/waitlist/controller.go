package waitlist

import (
	"os"
	"strconv"
	"time"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/akeren/waitlist-api/pkg/ratelimit"
)

func NewWaitlistController(
	db config.Database,
	logger *log.Logger,
	statsCache StatsCache,
) *router.RESTController {

	return router.NewRESTController(
		"WaitlistController",
		"/waitlist",
		func(rs *router.RouterService, c *router.RESTController) {
			repository := NewWaitlistRepository(db)
			service := NewWaitlistService(logger, repository, statsCache)

			joinLimiter := createJoinRateLimiter()

			rs.AddPostHandler(c, joinLimiter, "", joinWaitlistHandler(service))
			rs.AddPostHandler(c, nil, "check", checkEmailHandler(service))
			rs.AddGetHandler(c, nil, "stats", statsHandler(service))
		},
	)
}

// NewAdminWaitlistController exposes the paginated listing under /admin.
// It shares the repository semantics with the public controller but mounts
// separately so an auth middleware can be attached to the admin surface later.
func NewAdminWaitlistController(
	db config.Database,
	logger *log.Logger,
) *router.RESTController {

	return router.NewRESTController(
		"AdminWaitlistController",
		"/admin/waitlist",
		func(rs *router.RouterService, c *router.RESTController) {
			repository := NewWaitlistRepository(db)
			service := NewWaitlistService(logger, repository, nil)

			rs.AddGetHandler(c, nil, "", listEntriesHandler(service))
		},
	)
}

// Joining is the only write path, so it gets a limiter stricter than the
// global default.
func createJoinRateLimiter() ratelimit.RateLimiter {
	const defaultJoinRequestsPerMinute = 30

	requests := defaultJoinRequestsPerMinute
	if raw := os.Getenv("JOIN_RATE_LIMIT_REQUESTS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			requests = parsed
		}
	}

	config := &ratelimit.RateLimitConfig{
		Requests: requests,
		Window:   time.Minute,
		Redis:    nil,
		Logger:   nil,
	}

	return ratelimit.NewRateLimiter(config)
}

func joinWaitlistHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req JoinWaitlistRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Error("Failed to bind request", "error", err)

			validationErrors := apperrors.FormatValidationErrors(err, &req)
			if len(validationErrors) > 0 {
				return router.BadRequestResult("Invalid request payload", validationErrors)
			}

			return router.BadRequestResult("Invalid request body", nil)
		}

		provenance := RequestProvenance{
			IPAddress: ctx.ClientIP(),
			UserAgent: ctx.Request.UserAgent(),
		}

		response, err := service.JoinWaitlist(ctx.Request.Context(), &req, provenance)
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.CreatedResult(response, "Successfully joined the waitlist")
	}
}

func checkEmailHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req CheckEmailRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Error("Failed to bind request", "error", err)

			validationErrors := apperrors.FormatValidationErrors(err, &req)
			if len(validationErrors) > 0 {
				return router.BadRequestResult("Invalid request payload", validationErrors)
			}

			return router.BadRequestResult("Invalid request body", nil)
		}

		exists, err := service.CheckEmail(ctx.Request.Context(), &req)
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.OKResultWithFields(map[string]any{"exists": exists}, "")
	}
}

func statsHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.GetStats(ctx.Request.Context())
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.OKResult(response, "")
	}
}

func listEntriesHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		page := queryInt(ctx, "page", 1)
		limit := queryInt(ctx, "limit", DefaultPageSize)
		sortBy := ctx.DefaultQuery("sortBy", "createdAt")
		sortOrder := ctx.DefaultQuery("sortOrder", "desc")

		response, err := service.ListEntries(ctx.Request.Context(), page, limit, sortBy, sortOrder)
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.OKResult(response, "")
	}
}

// queryInt parses an integer query parameter, falling back on absent or
// unparsable values. Out-of-range values are normalized downstream.
func queryInt(ctx *router.RequestContext, name string, fallback int) int {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
