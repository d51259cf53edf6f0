package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/giveaway-hub/giveaway-hub/internal/api/http"
	appAuth "github.com/giveaway-hub/giveaway-hub/internal/application/auth"
	appGiveaway "github.com/giveaway-hub/giveaway-hub/internal/application/giveaway"
	"github.com/giveaway-hub/giveaway-hub/internal/config"
	"github.com/giveaway-hub/giveaway-hub/internal/domain/channel"
	"github.com/giveaway-hub/giveaway-hub/internal/infrastructure/kick"
	"github.com/giveaway-hub/giveaway-hub/internal/infrastructure/postgres"
	"github.com/giveaway-hub/giveaway-hub/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	winnerRepo := postgres.NewWinnerRepository(pool)
	channelRepo := postgres.NewChannelRepository(pool)

	// infrastructure
	hub := sse.NewHub(logger)
	kickClient := kick.NewClient(
		cfg.KickClientID,
		cfg.KickClientSecret,
		cfg.BaseURL+"/v1/auth/callback",
		cfg.KickOAuthBase,
		cfg.KickAPIBase,
	)

	// services
	authSvc := appAuth.NewService(kickClient, channelRepo, cfg.SessionSecret, logger)
	giveawaySvc := appGiveaway.NewService(hub, winnerRepo, cfg.ConfirmationWindow, logger)

	apiServer := httpapi.NewServer(
		giveawaySvc,
		authSvc,
		winnerRepo,
		hub,
		kickClient,
		cfg.SessionCookieName,
		cfg.SessionCookieSecure,
		logger,
	)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Re-establish the chat event subscription shortly after boot, then
	// hourly. Kick keeps subscriptions server-side but tokens go stale.
	go func() {
		time.Sleep(5 * time.Second)
		for {
			err := authSvc.EnsureEventSubscription(context.Background())
			if err != nil && err != channel.ErrNotLinked {
				logger.Warn().Err(err).Msg("chat event subscription check failed")
			}
			time.Sleep(time.Hour)
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	hub.Close()
}
