package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mafia-live/backend/internal/auth"
	"github.com/mafia-live/backend/internal/broadcast"
	"github.com/mafia-live/backend/internal/config"
	"github.com/mafia-live/backend/internal/coordinator"
	"github.com/mafia-live/backend/internal/httpapi"
	"github.com/mafia-live/backend/internal/ratelimit"
	"github.com/mafia-live/backend/internal/storage"
	"github.com/mafia-live/backend/internal/ws"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.DatabaseURL != "" {
		store, err = storage.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
	} else {
		logger.Warn("no DATABASE_URL set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	persister := storage.NewPersister(store, logger)
	gateway := broadcast.NewGateway(logger)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)

	hub := coordinator.NewHub(ctx, coordinator.Config{
		Gateway: gateway,
		Saver:   persister,
		Log:     logger,
		TTL:     cfg.RoomTTL,
	}, cfg.SweepInterval)

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:      hub,
		Verifier: verifier,
		Log:      logger,
		WS: ws.Handler(ws.Deps{
			Hub:      hub,
			Gateway:  gateway,
			Verifier: verifier,
			Limiter:  limiter,
			Log:      logger,
		}),
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return persister.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx, cfg.RateLimitWindow) })
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
