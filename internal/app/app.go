package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/bot"
	"storefront/internal/config"
	"storefront/internal/moderation"
	"storefront/internal/purchase"
	"storefront/internal/storage"
	"storefront/internal/storage/pg"
	"storefront/internal/storage/sqlite"
	"storefront/internal/storage/stubs"
)

const draftSweepSchedule = "@every 10m"

// App represents the application
type App struct {
	config      *config.Config
	logger      *zap.Logger
	db          storage.Storage
	drafts      moderation.DraftStore
	draftCloser io.Closer
	cron        *cron.Cron
	bot         *bot.Bot
	server      *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	app := &App{config: cfg, logger: logger, cron: cron.New()}
	logger.Info("Starting storefront bot...",
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("webhook_mode", cfg.WebhookMode),
	)

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initDrafts(ctx); err != nil {
		app.db.Close()
		return nil, err
	}
	if err := app.initBot(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

// OpenStorage connects the configured Content Store and applies migrations
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	var db storage.Storage
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data will be lost on restart")
		db = stubs.NewMockDB()
	case config.DriverPostgres:
		logger.Info("Connecting to Postgres")
		pgDB, err := pg.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		db = pgDB
	default:
		logger.Info("Opening SQLite database", zap.String("path", cfg.DatabasePath))
		sqliteDB, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		db = sqliteDB
	}

	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database initialized successfully")
	return db, nil
}

// OpenDraftStore picks Redis when configured, otherwise a memory store swept on c
func OpenDraftStore(ctx context.Context, cfg *config.Config, c *cron.Cron, logger *zap.Logger) (moderation.DraftStore, io.Closer, error) {
	if cfg.RedisAddr != "" {
		store := moderation.NewRedisDraftStore(cfg.RedisAddr, cfg.RedisPassword, cfg.DraftTTL)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("Admin drafts stored in Redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.DraftTTL))
		return store, store, nil
	}

	store := moderation.NewMemoryDraftStore(cfg.DraftTTL)
	if _, err := store.ScheduleSweep(c, draftSweepSchedule, logger); err != nil {
		return nil, nil, fmt.Errorf("failed to schedule draft sweep: %w", err)
	}
	logger.Info("Admin drafts stored in memory", zap.Duration("ttl", cfg.DraftTTL))
	return store, nil, nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := OpenStorage(ctx, a.config, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *App) initDrafts(ctx context.Context) error {
	drafts, closer, err := OpenDraftStore(ctx, a.config, a.cron, a.logger)
	if err != nil {
		return err
	}
	a.drafts = drafts
	a.draftCloser = closer
	return nil
}

// initBot wires the moderation and purchase logic behind the Telegram bot
func (a *App) initBot() error {
	api, err := bot.NewAPI(a.config.TelegramToken, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	testMode := !a.config.UseRealPayments
	if testMode {
		a.logger.Warn("USE_REAL_PAYMENTS=false: paid content is granted WITHOUT payment")
	}

	invoices := bot.NewStarsInvoices(api, a.config.PaymentProviderToken)
	coordinator := purchase.NewCoordinator(a.db, invoices, testMode, a.logger.Named("purchase"))
	moderator := moderation.New(a.config.AdminID, a.db, a.drafts, a.logger.Named("moderation"))

	a.bot = bot.NewBot(api, a.db, moderator, coordinator, bot.Options{
		WebAppURL: a.config.WebAppURL,
		PolicyURL: a.config.PolicyURL,
	}, a.logger.Named("bot"))

	a.logger.Info("Bot created successfully", zap.Int64("admin_id", a.config.AdminID))
	return nil
}

// initHTTPServer prepares the HTTP server for the Mini App API, health checks and webhook
func (a *App) initHTTPServer() {
	handler := bot.NewHTTPServer(a.bot, a.config.WebhookMode, a.config.RequireInitData).Handler()
	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	a.bot.RegisterCommands()
	a.cron.Start()

	if a.config.WebhookMode {
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			stop()
			a.Shutdown()
			g.Wait()
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
	} else {
		g.Go(func() error {
			return a.bot.Start(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down...")
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	<-a.cron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	err := a.closeStores()
	if err == nil {
		a.logger.Info("Shutdown complete")
	}
	a.logger.Sync()
	return err
}

func (a *App) closeStores() error {
	if a.draftCloser != nil {
		if err := a.draftCloser.Close(); err != nil {
			a.logger.Error("Error closing draft store", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}
	return nil
}
