package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokokas/backend/internal/alerts"
	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/config"
	"tokokas/backend/internal/events"
	"tokokas/backend/internal/httpapi"
	"tokokas/backend/internal/renewal"
	"tokokas/backend/internal/service"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/store/memory"
	pgstore "tokokas/backend/internal/store/postgres"
	"tokokas/backend/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set, refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	bus := events.NewBus(log)
	shiftCache := cache.ShiftCache(cache.NoopShiftCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisShiftCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop shift cache")
		} else {
			shiftCache = redisCache
			closers = append(closers, redisCache.Close)
			bus = bus.WithRedis(redisCache.Client(), cfg.SaleEventChannel)
			log.Info().Str("channel", cfg.SaleEventChannel).Msg("cache: redis, sale events published")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	var renewer renewal.Renewer
	if cfg.MembershipAPIURL != "" {
		renewer = renewal.NewHTTPRenewer(cfg.MembershipAPIURL, nil)
		log.Info().Str("url", cfg.MembershipAPIURL).Msg("renewals: membership api")
	} else {
		renewer = renewal.LogOnlyRenewer{Log: log}
		log.Warn().Msg("renewals: log only, MEMBERSHIP_API_URL not set")
	}
	queue := renewal.NewQueue(renewer, cfg.RenewalQueueSize, cfg.TrainingCategories, log)
	queue.Start()

	svc := service.New(
		repo,
		bus,
		queue,
		shiftCache,
		time.Duration(cfg.ShiftCacheTTLSeconds)*time.Second,
		cfg.RenewalCategories,
		log,
	)
	if err := svc.Resync(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to resync open shift")
	}

	alertEngine := alerts.NewEngine(repo, 15*time.Minute, log)
	bus.Subscribe(alertEngine.HandleSale)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, alertEngine, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	queue.Stop()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
