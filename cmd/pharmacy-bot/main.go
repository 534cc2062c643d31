package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/romnatson3/pharmacy/bot/funnel"
	"github.com/romnatson3/pharmacy/bot/jobs"
	"github.com/romnatson3/pharmacy/bot/tasks"
	"github.com/romnatson3/pharmacy/bot/webhook"
	"github.com/romnatson3/pharmacy/catalog"
	"github.com/romnatson3/pharmacy/core/cache"
	"github.com/romnatson3/pharmacy/core/config"
	"github.com/romnatson3/pharmacy/core/database"
	"github.com/romnatson3/pharmacy/core/logger"
	"github.com/romnatson3/pharmacy/core/queue"
	"github.com/romnatson3/pharmacy/core/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("pharmacy-bot: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Dir:     cfg.Logging.Dir,
		File:    cfg.Logging.File,
		Profile: cfg.Logging.Profile,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer store.Close()

	bot, err := telegram.NewBot(cfg.Telegram.Token, false)
	if err != nil {
		return err
	}
	sender := telegram.NewBotSender(bot)

	q := queue.New(queue.Options{Size: cfg.Queue.Size, Workers: cfg.Queue.Workers})
	defer q.Close()

	repo := catalog.New(db)
	state := funnel.NewState(store)
	taskSet := tasks.New(repo, sender, state)
	dispatcher := funnel.New(state, q, taskSet)

	if cfg.Promo.Enabled {
		promo := jobs.NewPromo(repo, taskSet, q)
		if err := promo.Start(cfg.Promo.Schedule); err != nil {
			return fmt.Errorf("schedule promo broadcast: %w", err)
		}
		defer promo.Stop()
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberrecover.New())
	webhook.New(cfg.Telegram.WebhookSecret, dispatcher).Register(app, cfg.Server.Path)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Listen, cfg.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(addr)
	}()
	logger.Info(ctx, "app", "listening",
		slog.String("addr", addr),
		slog.String("path", cfg.Server.Path),
	)

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "app", "shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "app", "shutdown.fail", slog.String("err", err.Error()))
		}
		return nil
	case err := <-serveErr:
		return fmt.Errorf("listen %s: %w", addr, err)
	}
}
