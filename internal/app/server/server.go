package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/platform/config"
	"hrpay/internal/platform/crypto"
	"hrpay/internal/platform/db"
	"hrpay/internal/platform/jobs"
	"hrpay/internal/platform/metrics"
	"hrpay/internal/store/memory"
	"hrpay/internal/store/sqlite"
	payrollhandler "hrpay/internal/transport/http/handlers/payroll"
	"hrpay/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Router  http.Handler
	Jobs    *jobs.Service
	Payroll *payroll.Service
	Metrics *metrics.Collector

	ready   func(context.Context) error
	closers []func()
}

// backend is everything that depends on the selected store driver.
type backend struct {
	store       payroll.StoreAPI
	runs        jobs.RunStore
	audit       audit.Recorder
	idempotency middleware.IdempotencyStore
	ready       func(context.Context) error
	close       func()
}

func Run() {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()
	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("payroll server listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "taxBasis", cfg.TaxIncomeBasis)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
	slog.Info("payroll server stopped")
}

// New wires the store, job runner, audit trail and router for cfg. The job
// worker is not started; callers own its lifetime through Jobs.Start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service := payroll.NewService(be.store, payroll.EngineOptions{
		TaxBasis:       cfg.TaxIncomeBasis,
		StrictTaxTable: cfg.StrictTaxTable,
		Logger:         slog.Default(),
	}, cfg.PayrollWorkers)
	jobSvc := jobs.New(be.runs, cfg.JobQueueSize)
	collector := metrics.New()
	handler := payrollhandler.NewHandler(service, jobSvc, be.audit, be.idempotency, collector)

	app := &App{
		Config:  cfg,
		Jobs:    jobSvc,
		Payroll: service,
		Metrics: collector,
		ready:   be.ready,
	}
	if be.close != nil {
		app.closers = append(app.closers, be.close)
	}
	app.Router = NewRouter(cfg, handler, collector, be.ready)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg)
	case config.StoreDriverSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return backend{}, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.RunSeed {
			if err := seedSQLite(ctx, store); err != nil {
				_ = store.Close()
				return backend{}, fmt.Errorf("seed sqlite: %w", err)
			}
		}
		return backend{
			store:       store,
			runs:        jobs.NewMemoryRunStore(),
			audit:       audit.LogRecorder{},
			idempotency: middleware.NewMemoryIdempotencyStore(),
			ready:       store.Ping,
			close:       func() { _ = store.Close() },
		}, nil
	case config.StoreDriverMemory:
		store := memory.New()
		if cfg.RunSeed {
			seedMemory(store)
		}
		return backend{
			store:       store,
			runs:        jobs.NewMemoryRunStore(),
			audit:       audit.LogRecorder{},
			idempotency: middleware.NewMemoryIdempotencyStore(),
		}, nil
	default:
		return backend{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (backend, error) {
	cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return backend{}, err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return backend{}, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("seed: %w", err)
		}
	}
	return backend{
		store:       payroll.NewStore(pool, cryptoSvc),
		runs:        jobs.NewPGRunStore(pool),
		audit:       audit.New(pool),
		idempotency: middleware.NewPGIdempotencyStore(pool),
		ready:       pool.Ping,
		close:       pool.Close,
	}, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
