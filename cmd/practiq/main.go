package main

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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/practiq/internal/adapter/fsm"
	otelAdapter "github.com/neomorfeo/practiq/internal/adapter/otel"
	riverAdapter "github.com/neomorfeo/practiq/internal/adapter/river"
	"github.com/neomorfeo/practiq/internal/adapter/sqlite"
	"github.com/neomorfeo/practiq/internal/adapter/templates"
	"github.com/neomorfeo/practiq/internal/app"

	handler "github.com/neomorfeo/practiq/internal/adapter/http"
)

const (
	serviceName    = "practiq"
	serviceVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("practiq exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	providers, err := otelAdapter.Setup(ctx, otelAdapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelAdapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg.ChecklistTemplatesPath)
	if err != nil {
		return fmt.Errorf("checklist templates: %w", err)
	}

	customers := otelAdapter.NewTracingCustomerRepository(store.Customers)
	retainers := otelAdapter.NewTracingRetainerRepository(store.Retainers)

	dormancy := app.NewDormancyScanner(customers, cfg.Dormancy)

	queue, err := riverAdapter.Setup(ctx, store.DB(), riverAdapter.Options{
		Scanner:      dormancy,
		ScanInterval: cfg.DormancyScanInterval,
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	publisher, err := otelAdapter.NewTracingPublisher(riverAdapter.NewPublisher(queue))
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	// --- Application ---
	gate := app.NewPrerequisiteGate(customers, store.Checklists, retainers, store.TimeEntries)
	svc := handler.Services{
		Lifecycle:     app.NewLifecycleService(customers, store.Checklists, catalog, fsm.New(), gate, publisher),
		Checklists:    app.NewChecklistService(store.Checklists, customers, catalog),
		Prerequisites: gate,
		Retainers:     app.NewRetainerService(retainers, customers, store.TimeEntries, store.Rates, gate, publisher, cfg.DefaultCurrency),
		TimeEntries:   app.NewTimeEntryService(store.TimeEntries, customers, retainers),
		Dormancy:      dormancy,
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, serviceVersion))
	handler.Register(api, svc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Run until signalled ---
	// River stops through queue.Stop below, not through ctx.
	if err := queue.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("practiq listening", "addr", srv.Addr, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := queue.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("river shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("stopped")
	return nil
}

// loadCatalog reads the template file when one is configured, else the
// embedded default catalog.
func loadCatalog(path string) (*templates.Catalog, error) {
	if path == "" {
		return templates.Default()
	}
	return templates.Load(path)
}
