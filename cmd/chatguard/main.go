// Package main contains the entrypoint for the chatguard moderation bot.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/edgard/chatguard/internal/bot"
	"github.com/edgard/chatguard/internal/bot/handlers"
	"github.com/edgard/chatguard/internal/bot/tasks"
	"github.com/edgard/chatguard/internal/config"
	"github.com/edgard/chatguard/internal/database"
	"github.com/edgard/chatguard/internal/feed"
	"github.com/edgard/chatguard/internal/httpapi"
	"github.com/edgard/chatguard/internal/logger"
	"github.com/edgard/chatguard/internal/moderation"
	"github.com/edgard/chatguard/internal/resilience"
	"github.com/edgard/chatguard/internal/telegram"
	"github.com/edgard/chatguard/internal/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Optional dotenv file with CHATGUARD_* overrides")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load dotenv file", "path", *envPath, "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName, version, log)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		return 1
	}
	defer shutdownTracing()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)

	hub := feed.NewHub(cfg.Sync.FeedBuffer, log)
	store := database.NewStore(db, hub, log)

	resolverOpts := []moderation.ResolverOption{
		moderation.WithLookupTimeout(cfg.Moderation.ResolveTimeout),
		moderation.WithDefaultReason(cfg.Moderation.DefaultReason),
	}
	if cfg.Moderation.BreakerFailures > 0 {
		resolverOpts = append(resolverOpts, moderation.WithBreaker(resilience.NewBreaker(resilience.BreakerConfig{
			Name:        "ban_store",
			MaxFailures: cfg.Moderation.BreakerFailures,
			Cooldown:    cfg.Moderation.BreakerCooldown,
			Logger:      log,
		})))
	}
	resolver := moderation.NewResolver(store, log, resolverOpts...)
	gateway := moderation.NewGateway(store, log, nil)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Resolver: resolver,
		Gateway:  gateway,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewIngestHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var api *httpapi.Server
	if cfg.HTTP.Addr != "" {
		api = httpapi.NewServer(cfg, store, resolver, log)
	} else {
		log.Info("HTTP API disabled")
	}

	app := bot.NewBot(log, hub, tg, sched, api)

	log.Info("Starting chatguard...")
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("chatguard stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("chatguard stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
