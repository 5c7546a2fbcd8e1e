package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	ConnectModeEager = "eager"
	ConnectModeLazy  = "lazy"
)

// Database abstracts the connection lifecycle so long-running deployments
// can connect eagerly at startup while on-demand deployments (short-lived,
// possibly-reused invocations) connect lazily on first use. Either way at
// most one *gorm.DB is established and shared across requests.
type Database interface {
	DB(ctx context.Context) (*gorm.DB, error)
	Ping(ctx context.Context) error
	Close(logger *log.Logger)
}

type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety
}

func defaultDBConfig() *DBConfig {
	return &DBConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Minute,
		SSLMode:         "require",
	}
}

// GetConnectMode reads DB_CONNECT_MODE, defaulting to eager.
func GetConnectMode() string {
	mode := strings.ToLower(sanitizeEnv(GetValueFromEnvironmentVariable("DB_CONNECT_MODE", "")))
	if mode == ConnectModeLazy {
		return ConnectModeLazy
	}
	return ConnectModeEager
}

// NewDatabase builds the connection strategy for the given mode. Eager mode
// connects immediately and fails hard; lazy mode defers to first use.
func NewDatabase(logger *log.Logger, cfg *DBConfig, mode string) (Database, error) {
	if cfg == nil {
		cfg = defaultDBConfig()
	}

	if mode == ConnectModeLazy {
		logger.Info("Database configured for lazy connection")
		return &lazyDatabase{
			open: func() (*gorm.DB, error) { return openDatabase(logger, cfg) },
		}, nil
	}

	db, err := openDatabase(logger, cfg)
	if err != nil {
		return nil, err
	}
	return &staticDatabase{db: db}, nil
}

// NewStaticDatabase wraps an already-open handle. Used by eager mode and by
// tests that bring their own database.
func NewStaticDatabase(db *gorm.DB) Database {
	return &staticDatabase{db: db}
}

type staticDatabase struct {
	db *gorm.DB
}

func (s *staticDatabase) DB(ctx context.Context) (*gorm.DB, error) {
	return s.db, nil
}

func (s *staticDatabase) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *staticDatabase) Close(logger *log.Logger) {
	closeGormDB(s.db, logger)
}

type lazyDatabase struct {
	mu   sync.Mutex
	db   *gorm.DB
	open func() (*gorm.DB, error)
}

func (l *lazyDatabase) DB(ctx context.Context) (*gorm.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return l.db, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A failed connect leaves db nil so the next invocation retries; an
	// unreachable store must be recoverable in on-demand deployments.
	var db *gorm.DB
	err := retry.NewExponentialBackoff(&retry.Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
	}).Execute(func() error {
		var openErr error
		db, openErr = l.open()
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("lazy database connect: %w", err)
	}

	l.db = db
	return l.db, nil
}

func (l *lazyDatabase) Ping(ctx context.Context) error {
	db, err := l.DB(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (l *lazyDatabase) Close(logger *log.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db != nil {
		closeGormDB(l.db, logger)
		l.db = nil
	}
}

func openDatabase(logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	appDatabaseURL := sanitizeEnv(GetValueFromEnvironmentVariable("APP_DATABASE_URL", ""))

	dsn, err := buildDSNFromEnv(appDatabaseURL, logger, cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("Failed to get database instance", "error", err)
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		logger.Error("Database ping failed", "error", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established successfully")
	return gdb, nil
}

func buildDSNFromEnv(appDatabaseURL string, logger *log.Logger, cfg *DBConfig) (string, error) {
	if strings.TrimSpace(appDatabaseURL) != "" {
		logger.Info("Using APP_DATABASE_URL for database connection")
		return appDatabaseURL, nil
	}

	host, portStr, user, pass, dbName, ssl := getDatabaseEnvParams()
	if ssl == "" {
		ssl = cfg.SSLMode
	}

	missing := []string{}

	if host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}

	if portStr == "" {
		missing = append(missing, "POSTGRES_PORT")
	}

	if user == "" {
		missing = append(missing, "POSTGRES_USER")
	}

	if dbName == "" {
		missing = append(missing, "POSTGRES_DB_NAME")
	}

	if len(missing) > 0 {
		logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("Invalid POSTGRES_PORT", "error", err)
		return "", fmt.Errorf("invalid POSTGRES_PORT %q: %w", portStr, err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, dbName, ssl,
	)

	logger.Info("Connecting to database",
		"host", host,
		"port", port,
		"user", user,
		"dbname", dbName,
		"sslmode", ssl,
	)
	return dsn, nil
}

func getDatabaseEnvParams() (host, port, user, pass, dbName, ssl string) {
	host = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_HOST", ""))
	port = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PORT", ""))
	user = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_USER", ""))
	pass = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PASSWORD", ""))
	dbName = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_DB_NAME", ""))
	ssl = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_SSLMODE", ""))

	return host, port, user, pass, dbName, ssl
}

func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	return s
}

// AutoMigrate creates tables and indexes for the registered models. GORM
// skips indexes that already exist, so repeated runs are safe.
func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

func closeGormDB(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
