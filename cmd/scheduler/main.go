package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"lead_engine_backend/internal/adapters"
	"lead_engine_backend/internal/events"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without a shared database and Redis locks the API ticks in-process, and a
	// second process would race it.
	if cfg.GetDatabaseURL() == "" || !cfg.IsRedisEnabled() {
		log.Error("scheduler requires DATABASE_URL and REDIS_URL")
		panic("scheduler requires DATABASE_URL and REDIS_URL")
	}

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

	eventBus := events.NewInMemoryBus(log)
	events.NewAudit(log).Register(eventBus)

	leadsModule := leads.NewModule(leads.Deps{
		Store:    store,
		Catalog:  catalog,
		Channel:  msgChannel,
		Locker:   locker,
		Clock:    clk,
		EventBus: eventBus,
		Config:   cfg,
		Log:      log,
	}, validator.New())
	automationSvc := leadsModule.AutomationService()

	var wg sync.WaitGroup

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, automationSvc, clk, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	dispatcher := scheduler.NewSequenceDispatcher(store, client, clk, cfg.GetTickInterval(), log)

	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	log.Info("scheduler running", "queue", cfg.GetAsynqQueueName(), "interval", cfg.GetTickInterval().String())
	wg.Wait()
	eventBus.Wait()
	log.Info("scheduler stopped")
}
