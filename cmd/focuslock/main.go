package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focuslock/config"
	"focuslock/internal/api"
	"focuslock/internal/core"
	"focuslock/internal/enforce"
	"focuslock/internal/enforce/deviceapi"
	"focuslock/internal/enforce/passive"
	"focuslock/internal/logging"
	"focuslock/internal/notify"
	"focuslock/internal/scheduler"
	"focuslock/internal/storage"
	"focuslock/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	startupTimeout    = 30 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	logger.Info("Initializing database", "component", "main", "path", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var store storage.Storage = db
	if ttl := cfg.Database.CacheTTL(); ttl > 0 {
		logger.Info("Enabling read cache", "component", "main", "ttl", ttl)
		store = storage.NewCachedStorage(db, ttl)
	}

	// Register enforcement gateway drivers and select the configured one
	registry := enforce.NewRegistry()
	if err := registry.Register(passive.NewDriver(logging.Component(logger, "passive"))); err != nil {
		return fmt.Errorf("failed to register passive driver: %w", err)
	}
	if cfg.Enforcement.BaseURL != "" {
		err := registry.Register(deviceapi.NewDriver(deviceapi.Config{
			BaseURL: cfg.Enforcement.BaseURL,
			APIKey:  cfg.Enforcement.APIKey,
		}))
		if err != nil {
			return fmt.Errorf("failed to register device API driver: %w", err)
		}
	}

	gateway, err := registry.Get(cfg.Enforcement.Driver)
	if err != nil {
		return fmt.Errorf("failed to select enforcement driver %q: %w", cfg.Enforcement.Driver, err)
	}
	logger.Info("Enforcement gateway selected", "component", "main", "driver", gateway.Name())

	// Optional outbound notifications
	var notifier core.Notifier
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, store, logging.Component(logger, "notify"))
		if err != nil {
			return fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		notifier = tg
	}

	ledger := core.NewTapoutLedger(store, logging.Component(logger, "tapout"))
	controller := core.NewController(store, gateway, ledger, notifier, logging.Component(logger, "session"))
	reconciler := core.NewReconciler(store, controller, gateway, logging.Component(logger, "reconcile"))
	sched := scheduler.NewScheduler(store, controller, gateway, cfg.Scheduler.Interval(), logging.Component(logger, "scheduler"))

	// Startup pass: resolve drift accumulated while the server was down,
	// then bring every user's schedule state current before serving traffic
	startupCtx, startupCancel := context.WithTimeout(context.Background(), startupTimeout)
	reconcileAll(startupCtx, store, reconciler, sched, logger)
	startupCancel()

	go sched.Start()

	router := api.NewRouter(api.RouterConfig{
		Storage:    store,
		Controller: controller,
		Ledger:     ledger,
		Scheduler:  sched,
		Reconciler: reconciler,
		AdminKey:   cfg.Security.AdminKey,
		Logger:     logging.Component(logger, "api"),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			"component", "main",
			"addr", server.Addr,
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "component", "main", "signal", sig.String())

		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete", "component", "main")
	}

	return nil
}

// reconcileAll runs reconciliation and schedule evaluation for every known
// user. Failures are logged, not fatal: a user whose state cannot be repaired
// now will be retried on the next scheduler tick.
func reconcileAll(ctx context.Context, store storage.Storage, reconciler *core.Reconciler, sched *scheduler.Scheduler, logger *slog.Logger) {
	userIDs, err := store.ListUserIDs(ctx)
	if err != nil {
		logger.Error("Startup reconciliation failed to list users",
			"component", "main",
			"error", err,
		)
		return
	}

	for _, userID := range userIDs {
		if err := reconciler.Run(ctx, userID); err != nil {
			logger.Error("Startup reconciliation failed",
				"component", "main",
				"user_id", userID,
				"error", err,
			)
			continue
		}
		if err := sched.Evaluate(ctx, userID); err != nil {
			logger.Error("Startup schedule evaluation failed",
				"component", "main",
				"user_id", userID,
				"error", err,
			)
		}
	}
}
