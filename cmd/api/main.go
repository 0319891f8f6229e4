package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_engine_backend/internal/adapters"
	"lead_engine_backend/internal/events"
	apphttp "lead_engine_backend/internal/http"
	"lead_engine_backend/internal/http/router"
	"lead_engine_backend/internal/leads"
	"lead_engine_backend/internal/scheduler"
	"lead_engine_backend/internal/templates"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"
	"lead_engine_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	store, err := adapters.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		panic("failed to open store: " + err.Error())
	}
	defer store.Close()

	catalog, err := templates.Load(cfg.GetTemplatesPath())
	if err != nil {
		log.Error("failed to load template catalog", "error", err)
		panic("failed to load template catalog: " + err.Error())
	}
	for id, names := range catalog.UnknownPlaceholders() {
		log.Warn("template uses unknown placeholders", "template", id, "placeholders", names)
	}

	locker, closeLocker, err := adapters.NewLocker(cfg, log)
	if err != nil {
		log.Error("failed to initialize locker", "error", err)
		panic("failed to initialize locker: " + err.Error())
	}
	defer closeLocker()

	clk := clock.Real{}
	msgChannel, err := adapters.NewChannel(cfg, store, clk, log)
	if err != nil {
		log.Error("failed to initialize message channel", "error", err)
		panic("failed to initialize message channel: " + err.Error())
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	events.NewAudit(log).Register(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(leads.Deps{
		Store:    store,
		Catalog:  catalog,
		Channel:  msgChannel,
		Locker:   locker,
		Clock:    clk,
		EventBus: eventBus,
		Config:   cfg,
		Log:      log,
	}, val)

	// Without Redis there is no separate scheduler process, so the API drives
	// due touches itself.
	if !cfg.IsRedisEnabled() {
		ticker := scheduler.NewSequenceTicker(leadsModule.AutomationService(), clk, cfg.GetTickInterval(), log)
		go ticker.Run(ctx)
		log.Info("in-process sequence ticker started", "interval", cfg.GetTickInterval().String())
	}

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  store,
		Modules: []apphttp.Module{
			leadsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.GetHTTPAddr())
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
