package domain

import (
	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/domain/monitoring"
	"github.com/akeren/waitlist-api/domain/waitlist"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	appConfig.RouterService.MountController(monitoring.NewMonitoringController(appConfig.DB, appConfig.Logger))

	factory := waitlist.NewWaitlistServiceFactory(appConfig.DB, appConfig.Logger, statsCacheOrNil(appConfig))
	appConfig.RouterService.MountController(factory.CreateController())
	appConfig.RouterService.MountController(factory.CreateAdminController())
}

// statsCacheOrNil avoids the classic non-nil interface wrapping a nil value:
// a missing cache must stay nil all the way down.
func statsCacheOrNil(appConfig *config.ApplicationConfig) waitlist.StatsCache {
	if appConfig.Cache == nil {
		return nil
	}
	return appConfig.Cache
}
