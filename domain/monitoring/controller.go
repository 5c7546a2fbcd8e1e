package monitoring

import (
	"context"
	"time"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/constants"
	"github.com/akeren/waitlist-api/pkg/ratelimit"
)

const (
	databaseConnected    = "Connected"
	databaseDisconnected = "Disconnected"

	healthCheckTimeout = 2 * time.Second
)

type MonitoringController struct {
	db        config.Database
	logger    *log.Logger
	startTime time.Time
}

func NewMonitoringController(db config.Database, logger *log.Logger) *router.RESTController {
	ctrl := &MonitoringController{
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {

			monitoringRateLimiter := createMonitoringRateLimiter()

			routerService.AddGetHandler(controller, monitoringRateLimiter, "", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.root(c)
			})

			routerService.AddGetHandler(controller, monitoringRateLimiter, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(routerService, c)
			})
		},
	)
}

func createMonitoringRateLimiter() ratelimit.RateLimiter {

	const monitoringRequestsPerMinute = 60

	config := &ratelimit.RateLimitConfig{
		Requests: monitoringRequestsPerMinute,
		Window:   time.Minute,
		Redis:    nil,
		Logger:   nil,
	}

	return ratelimit.NewRateLimiter(config)
}

// healthCheck always answers 200; a broken database shows up in the
// "database" field rather than as an HTTP error, so probes can tell a
// degraded service from a dead one.
func (ctrl *MonitoringController) healthCheck(
	routerService *router.RouterService,
	c *router.RequestContext,
) *router.ServiceResult {
	logger := routerService.GetLogger(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	database := databaseConnected
	if err := ctrl.db.Ping(ctx); err != nil {
		logger.Error("Database health check failed", "error", err)
		database = databaseDisconnected
	}

	return router.OKResultWithFields(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(constants.RFC3339DateTimeFormat),
		"database":  database,
	}, "")
}

func (ctrl *MonitoringController) root(
	c *router.RequestContext,
) *router.ServiceResult {
	return router.OKResultWithFields(map[string]any{
		"uptime": int(time.Since(ctrl.startTime).Seconds()),
	}, "Waitlist API is operational")
}
