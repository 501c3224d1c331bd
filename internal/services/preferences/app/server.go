package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/louisbranch/capture-preferences/internal/platform/httpx"
	"github.com/louisbranch/capture-preferences/internal/platform/timeouts"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/api/httpapi"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/auth"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/service"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/postgres"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/sqlite"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const apiPrefix = "/api/"

// Config defines the inputs for the preferences process.
type Config struct {
	HTTPAddr    string
	DBDriver    string
	DBPath      string
	DBDSN       string
	TokenSecret string
	TokenIssuer string
	PageSize    int
	MaxPageSize int
	FrontendDir string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            *zap.Logger
}

// Server hosts the preferences HTTP process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           storage.PreferenceStore
	logger          *zap.Logger
}

// OpenStore opens the store selected by cfg.DBDriver and applies migrations.
func OpenStore(ctx context.Context, cfg Config) (storage.PreferenceStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			return nil, errors.New("sqlite path is required")
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case DriverPostgres:
		dsn := strings.TrimSpace(cfg.DBDSN)
		if dsn == "" {
			return nil, errors.New("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

// NewHandler builds the full HTTP handler: API routes, optional front-end and
// the shared middleware chain.
func NewHandler(svc *service.Service, cfg Config) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	issuer := strings.TrimSpace(cfg.TokenIssuer)
	if issuer == "" || cfg.TokenSecret == "" {
		return nil, errors.New("token issuer and secret are required")
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(svc, logger).Register(mux)
	if dir := strings.TrimSpace(cfg.FrontendDir); dir != "" {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			mux.Handle("/", http.FileServer(http.Dir(dir)))
			logger.Info("serving front-end", zap.String("dir", dir))
		default:
			logger.Warn("front-end directory unavailable", zap.String("dir", dir), zap.Error(err))
		}
	}

	handler := httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RequestLog(logger),
		httpx.RecoverPanic(logger),
		httpx.CORS(apiPrefix),
		auth.Middleware(auth.Config{Issuer: issuer, Secret: []byte(cfg.TokenSecret)}),
	)
	return otelhttp.NewHandler(handler, "preferences.http"), nil
}

// NewServer opens the store and builds a configured server.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	openCtx, cancel := context.WithTimeout(ctx, timeouts.StoreOpen)
	defer cancel()
	store, err := OpenStore(openCtx, cfg)
	if err != nil {
		return nil, err
	}

	svc := service.New(store, service.Config{PageSize: cfg.PageSize, MaxPageSize: cfg.MaxPageSize})
	handler, err := NewHandler(svc, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       timeouts.Idle,
		},
		store:  store,
		logger: cfg.Logger,
	}, nil
}

// Run creates and serves a preferences server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init preferences server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve preferences: %w", err)
	}
	return nil
}

// ListenAndServe binds the configured address and serves until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("preferences server is nil")
	}
	listener, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpAddr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until the context ends, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s == nil {
		return errors.New("preferences server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if listener == nil {
		return errors.New("listener is required")
	}

	serveErr := make(chan error, 1)
	s.logger.Info("preferences server listening", zap.String("addr", listener.Addr().String()))
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.logger.Info("preferences server stopped")
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the store.
func (s *Server) Close() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close store", zap.Error(err))
	}
	s.store = nil
}
