package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vedran77/spark/internal/auth"
	"github.com/vedran77/spark/internal/config"
	"github.com/vedran77/spark/internal/database"
	"github.com/vedran77/spark/internal/metrics"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/presence"
	"github.com/vedran77/spark/internal/push"
	"github.com/vedran77/spark/internal/repository"
	"github.com/vedran77/spark/internal/repository/memory"
	"github.com/vedran77/spark/internal/repository/postgres"
	"github.com/vedran77/spark/internal/retry"
	"github.com/vedran77/spark/internal/service"
	"github.com/vedran77/spark/internal/transport"
	"github.com/vedran77/spark/internal/transport/apigw"
	"github.com/vedran77/spark/internal/transport/http/handlers"
	"github.com/vedran77/spark/internal/transport/live"
	"github.com/vedran77/spark/internal/transport/ws"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.Store.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	}
	pool, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Info("connected to database", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))
	return postgres.NewStore(pool, cfg.DB.TxTimeout), nil
}

func openRegistry(ctx context.Context, cfg *config.Config, store repository.Store) (presence.Registry, func(), error) {
	if cfg.Presence.Backend == "store" {
		return presence.NewStoreRegistry(store.Repos().Connections), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	reg := presence.NewRedisRegistry(client, cfg.Redis.Prefix, cfg.Presence.MaxAge)
	return reg, func() { client.Close() }, nil
}

func pushClient(cfg config.PushConfig, log *zap.Logger) push.Client {
	if !cfg.Enabled {
		return push.Noop{}
	}
	tokens := push.NewClientCredentialsCache(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.TokenRefreshMargin)
	return push.NewHTTPClient(push.Config{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerTimeout,
	}, tokens, log)
}

func runServe(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, closeRegistry, err := openRegistry(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeRegistry()

	m := metrics.New(nil)
	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)
	retryCfg := retry.Config{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay}

	// The sender is chosen first; the dispatcher needs it and the live
	// surfaces need the services built on top of the dispatcher.
	var (
		sender transport.Sender
		hub    *ws.Hub
		gwSend *apigw.Sender
	)
	switch cfg.Transport.Kind {
	case "apigw":
		gwSend, err = apigw.New(ctx, apigw.Config{
			Endpoint:        cfg.Transport.APIGW.Endpoint,
			Region:          cfg.Transport.APIGW.Region,
			AccessKeyID:     cfg.Transport.APIGW.AccessKeyID,
			SecretAccessKey: cfg.Transport.APIGW.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		sender = gwSend
	default:
		hub = ws.NewHub(log, m)
		defer hub.Close()
		sender = hub
	}

	dispatcher := notify.NewDispatcher(registry, sender, log, m)
	fallback := notify.NewFallback(store.Repos().Users, pushClient(cfg.Push, log), log, m)

	relayService := service.NewRelayService(store, dispatcher, fallback, retryCfg, log, m)
	matchService := service.NewMatchService(store, dispatcher, fallback, retryCfg, log, m)
	gateway := live.NewGateway(verifier, registry, relayService, dispatcher, log)

	routes := handlers.RouterConfig{
		Verifier: verifier,
		Likes:    handlers.NewLikeHandler(matchService, log),
		Chats:    handlers.NewChatHandler(relayService, log),
		Logger:   log,
	}
	if hub != nil {
		routes.WS = ws.ServeWS(hub, gateway, ws.Options{
			MaxMessageSize: cfg.WS.MaxMessageSize,
			PingInterval:   cfg.WS.PingInterval,
			MaxAge:         cfg.Presence.MaxAge,
		})
	} else {
		routes.Gateway = handlers.NewGatewayHandler(gateway, gwSend, log)
		routes.GatewayKey = cfg.Transport.APIGW.IntegrationKey
	}

	// Redis entries expire on their own.
	if cfg.Presence.Backend == "store" {
		reaper := presence.NewReaper(store.Repos().Connections, cfg.Presence.MaxAge, log)
		reaper.OnReap = m.Reap
		sched, err := reaper.Schedule(cfg.Presence.ReapSchedule)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("transport", cfg.Transport.Kind),
			zap.String("presence", cfg.Presence.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown
	if hub != nil {
		hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	pool, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("schema applied", zap.String("database", cfg.DB.Name))
	return nil
}

func runReap(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := presence.NewReaper(store.Repos().Connections, cfg.Presence.MaxAge, log).Sweep(ctx)
	if err != nil {
		return err
	}
	log.Info("stale connections removed", zap.Int64("count", n))
	return nil
}
