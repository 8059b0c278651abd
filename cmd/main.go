package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/okian/nebula/internal/adapters/http/api"
	"github.com/okian/nebula/internal/adapters/http/swagger"
	"github.com/okian/nebula/internal/adapters/push"
	"github.com/okian/nebula/internal/adapters/repository"
	service "github.com/okian/nebula/internal/app"
	"github.com/okian/nebula/internal/config"
	"github.com/okian/nebula/internal/domain/identity"
	"github.com/okian/nebula/internal/domain/notify"
	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(ctx, fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		log.Warn(ctx, "failed to set GOMAXPROCS", logger.Error(err))
	}

	application, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           application.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	application.close(shutdownCtx)

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// application holds the wired components of one process.
type application struct {
	handler http.Handler
	service *service.Service
	hub     *push.Hub
	db      *sql.DB
	logger  logger.Logger
}

// build wires stores, identity, push, fan-out, the score service and routes.
// The returned application's service is already started.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	app := &application{logger: log}

	var (
		scores repository.ScoreStore
		conns  repository.ConnectionStore
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		app.db = db
		scores = repository.NewSQLiteScoreStore(db)
		conns = repository.NewSQLiteConnectionStore(db)
	default:
		scores = repository.NewMemoryScoreStore()
		conns = repository.NewMemoryConnectionStore()
	}

	idp, err := identity.NewLocal(cfg.JWTSecret,
		identity.WithLogger(log.Named("identity")),
		identity.WithCodeSender(identity.LogCodeSender{Logger: log.Named("codes")}),
		identity.WithTokenTTL(time.Duration(cfg.TokenTTLSeconds)*time.Second),
		identity.WithCacheSize(cfg.TokenCacheSize),
		identity.WithMinPasswordStrength(cfg.MinPasswordStrength),
	)
	if err != nil {
		app.closeDB(ctx)
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	app.hub = push.NewHub(conns,
		push.WithLogger(log.Named("push")),
		push.WithAuthenticator(idp),
		push.WithAllowedOrigins(cfg.CORSOrigins),
	)
	fanout := notify.New(conns, app.hub,
		notify.WithLogger(log.Named("notify")),
		notify.WithTargeted(cfg.FanoutTargeted),
	)

	app.service = service.New(
		service.WithLogger(log.Named("service")),
		service.WithScoreStore(scores),
		service.WithNotifier(fanout),
		service.WithWorkerCount(cfg.NotifyWorkers),
		service.WithQueueSize(cfg.NotifyQueueSize),
		service.WithHighScoreThreshold(cfg.HighScoreThreshold),
	)
	if err := app.service.Start(ctx); err != nil {
		app.closeDB(ctx)
		return nil, fmt.Errorf("failed to start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiServer := api.NewServer(app.service, idp,
		api.WithLogger(log.Named("api")),
		api.WithStats(app.service),
		api.WithPushHandler(app.hub),
		api.WithAllowedOrigins(cfg.CORSOrigins),
		api.WithAuthRateLimit(cfg.AuthRatePerSecond, cfg.AuthRateBurst),
	)
	apiServer.Register(mux)
	app.handler = apiServer.Handler(mux)
	return app, nil
}

// close disconnects sockets, drains pending notifications and closes the
// database, in that order.
func (a *application) close(ctx context.Context) {
	a.hub.Close()
	if err := a.service.Stop(ctx); err != nil {
		a.logger.Error(ctx, "service stop failed", logger.Error(err))
	}
	a.closeDB(ctx)
}

func (a *application) closeDB(ctx context.Context) {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error(ctx, "database close failed", logger.Error(err))
	}
	a.db = nil
}

// startSystemMetricsUpdater refreshes system gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context, log logger.Logger) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		log.Warn(ctx, "process metrics unavailable", logger.Error(err))
	}

	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		updateSystemMetrics(ctx, proc)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// updateSystemMetrics updates system-level metrics. proc may be nil.
func updateSystemMetrics(ctx context.Context, proc *process.Process) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if proc == nil {
		return
	}
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
		metrics.UpdateProcessRSS(info.RSS)
	}
}
