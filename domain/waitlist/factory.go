package waitlist

import (
	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
)

type WaitlistServiceFactory interface {
	CreateService() WaitlistService
	CreateController() *router.RESTController
	CreateAdminController() *router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	db         config.Database
	logger     *log.Logger
	statsCache StatsCache
}

func NewWaitlistServiceFactory(db config.Database, logger *log.Logger, statsCache StatsCache) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		db:         db,
		logger:     logger,
		statsCache: statsCache,
	}
}

func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	repository := NewWaitlistRepository(f.db)
	return NewWaitlistService(f.logger, repository, f.statsCache)
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.db, f.logger, f.statsCache)
}

func (f *DefaultWaitlistServiceFactory) CreateAdminController() *router.RESTController {
	return NewAdminWaitlistController(f.db, f.logger)
}
