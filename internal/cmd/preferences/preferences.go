// Package preferences parses service flags and composes the process entrypoint.
package preferences

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/capture-preferences/internal/platform/cmd"
	"github.com/louisbranch/capture-preferences/internal/platform/logging"
	server "github.com/louisbranch/capture-preferences/internal/services/preferences/app"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/service"
)

// Config holds preferences command configuration.
type Config struct {
	Port        int    `env:"CAPTURE_PREFERENCES_PORT"          envDefault:"8080"`
	DBDriver    string `env:"CAPTURE_PREFERENCES_DB_DRIVER"     envDefault:"sqlite"`
	DBPath      string `env:"CAPTURE_PREFERENCES_DB_PATH"       envDefault:"data/preferences.db"`
	DBDSN       string `env:"CAPTURE_PREFERENCES_DB_DSN"`
	TokenSecret string `env:"CAPTURE_PREFERENCES_TOKEN_SECRET"`
	TokenIssuer string `env:"CAPTURE_PREFERENCES_TOKEN_ISSUER"  envDefault:"capture-preferences"`
	PageSize    int    `env:"CAPTURE_PREFERENCES_PAGE_SIZE"     envDefault:"50"`
	MaxPageSize int    `env:"CAPTURE_PREFERENCES_MAX_PAGE_SIZE" envDefault:"300"`
	FrontendDir string `env:"CAPTURE_PREFERENCES_FRONTEND_DIR"`
	LogMode     string `env:"CAPTURE_PREFERENCES_LOG_MODE"      envDefault:"development"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "store driver (sqlite or postgres)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.FrontendDir, "frontend-dir", cfg.FrontendDir, "static front-end directory")
	fs.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "logger preset (development or production)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = service.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = service.MaxPageSize
	}
	return cfg, nil
}

// ServerConfig maps command configuration onto the process boundary.
func (cfg Config) ServerConfig(logger *zap.Logger) server.Config {
	return server.Config{
		HTTPAddr:    net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		DBDriver:    cfg.DBDriver,
		DBPath:      cfg.DBPath,
		DBDSN:       cfg.DBDSN,
		TokenSecret: cfg.TokenSecret,
		TokenIssuer: cfg.TokenIssuer,
		PageSize:    cfg.PageSize,
		MaxPageSize: cfg.MaxPageSize,
		FrontendDir: cfg.FrontendDir,
		Logger:      logger,
	}
}

// Run builds the preferences app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting preferences",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.DBDriver),
		logging.Redacted("db_dsn", cfg.DBDSN),
		logging.Redacted("token_secret", cfg.TokenSecret),
	)
	options := entrypoint.RunOptions{Logger: logger}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServicePreferences, options, func(ctx context.Context) error {
		if err := server.Run(ctx, cfg.ServerConfig(logger)); err != nil {
			return fmt.Errorf("serve preferences: %w", err)
		}
		return nil
	})
}
