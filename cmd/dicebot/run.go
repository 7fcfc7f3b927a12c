package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"dice-drop-bot/internal/bot"
	"dice-drop-bot/internal/common/config"
	"dice-drop-bot/internal/common/logger"
	httpapi "dice-drop-bot/internal/http"
	"dice-drop-bot/internal/platform/discord"
	"dice-drop-bot/internal/platform/store"
	"dice-drop-bot/internal/service/claims"
	"dice-drop-bot/internal/service/community"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/ledger"
	"dice-drop-bot/internal/service/mega"
	"dice-drop-bot/internal/service/scheduler"
)

const (
	serviceName       = "dice-drop-bot"
	countdownTick     = time.Second
	nameSweepInterval = 30 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Options{
		Service: serviceName,
		Level:   cfg.LogLevel,
		Debug:   cfg.Debug,
		JSON:    cfg.LogJSON,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBot(cctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Discord.BotToken == "" {
		return errors.New("DISCORD_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("backend", cfg.Store.Backend).Bool("debug", cfg.Debug).Msg("Starting dice drop bot")

	backend, err := store.Open(ctx, cfg, cfg.Store.Backend)
	if err != nil {
		return err
	}
	defer backend.Close()

	l, err := ledger.New(ctx, backend)
	if err != nil {
		return err
	}
	logger.Info().Int("communities", len(l.Communities())).Msg("Document loaded")

	session, err := discord.NewSession(cfg.Discord.BotToken)
	if err != nil {
		return err
	}
	messenger := discord.NewClient(session)
	go messenger.SweepNames(ctx, nameSweepInterval)

	registry := community.NewRegistry()
	engine := drops.NewEngine(l, registry, messenger, cfg.Drop.PublishHold)
	resolver := claims.NewResolver(l, registry, messenger, claims.Rewards{
		Coins:  cfg.Drop.CoinReward,
		Points: cfg.Drop.PointReward,
	})
	orchestrator := mega.NewOrchestrator(l, registry, engine, messenger, mega.Settings{
		Cost:      cfg.Mega.Cost,
		Count:     cfg.Mega.Count,
		Countdown: cfg.Mega.Countdown,
		Tick:      countdownTick,
		Spacing:   cfg.Mega.Spacing,
		Window:    cfg.Mega.SummaryDelay,
		Coins:     cfg.Drop.CoinReward,
		Points:    cfg.Drop.PointReward,
	})
	router := bot.NewRouter(l, engine, orchestrator, messenger, bot.Settings{LeaderboardSize: cfg.LeaderboardSize})

	gateway := discord.NewGateway(ctx, session, router, resolver, cfg.Discord.AppID, cfg.Discord.GuildID)
	if err := gateway.Open(); err != nil {
		return err
	}
	defer gateway.Close()

	sched := scheduler.NewScheduler(ctx, l, engine, cfg.Drop.Interval)
	sched.Start()
	defer sched.Stop()

	var serverErr <-chan error
	var server *httpapi.Server
	if cfg.Server.Enabled {
		server = httpapi.NewServer(cfg.Server.Port, httpapi.NewRouter(l, backend, registry, httpapi.Options{
			Origin:       cfg.Server.Origin,
			Debug:        cfg.Debug,
			DefaultLimit: cfg.LeaderboardSize,
		}))
		serverErr = server.Start()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server forced to shutdown")
		}
	}
	logger.Info().Msg("Bot stopped")
	return nil
}
