package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/adapter/cache"
	oauthadapter "github.com/smallbiznis/portal-auth/internal/adapter/oauth"
	"github.com/smallbiznis/portal-auth/internal/config"
	httptransport "github.com/smallbiznis/portal-auth/internal/http"
	"github.com/smallbiznis/portal-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/portal-auth/internal/http/middleware"
	"github.com/smallbiznis/portal-auth/internal/repository"
	"github.com/smallbiznis/portal-auth/internal/server"
	"github.com/smallbiznis/portal-auth/internal/service/identity"
	"github.com/smallbiznis/portal-auth/internal/session"
	"github.com/smallbiznis/portal-auth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newRedisClient,
			newUserRepository,
			newStateStore,
			newSessionStore,
			newSessionCodec,
			newGoogleProvider,
			newProviderRegistry,
			newReconciler,
			newFlowService,
			newSessionGate,
			newAuthHandler,
			newUserHandler,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newStateStore(client redis.UniversalClient) repository.LoginStateStore {
	return cache.NewRedisStateStore(client)
}

func newSessionStore(client redis.UniversalClient) session.Store {
	return session.NewRedisStore(client)
}

func newSessionCodec(users repository.UserRepository) *session.Codec {
	return session.NewCodec(users)
}

func newGoogleProvider(cfg config.Config) (*oauthadapter.GoogleProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return oauthadapter.NewGoogle(
		ctx,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.CallbackURLFor("google"),
	)
}

func newProviderRegistry(google *oauthadapter.GoogleProvider) *oauthadapter.Registry {
	return oauthadapter.NewRegistry(google)
}

func newReconciler(users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *identity.Reconciler {
	return identity.NewReconciler(users, node, logger)
}

func newFlowService(
	providers *oauthadapter.Registry,
	states repository.LoginStateStore,
	reconciler *identity.Reconciler,
	cfg config.Config,
	logger *zap.Logger,
) *identity.FlowService {
	return identity.NewFlowService(providers, states, reconciler, cfg.StateTTL, logger)
}

func newSessionGate(sessions session.Store, codec *session.Codec, logger *zap.Logger) *httpmiddleware.SessionGate {
	return httpmiddleware.NewSessionGate(sessions, codec, logger)
}

func newAuthHandler(
	flow *identity.FlowService,
	sessions session.Store,
	codec *session.Codec,
	cfg config.Config,
	logger *zap.Logger,
) *handler.AuthHandler {
	opts := session.DevelopmentCookieOptions()
	if cfg.IsProduction() {
		opts = session.ProductionCookieOptions()
	}
	return handler.NewAuthHandler(flow, sessions, codec, opts, cfg.SessionTTL, logger)
}

func newUserHandler(pool *pgxpool.Pool, logger *zap.Logger) *handler.UserHandler {
	return handler.NewUserHandler(pool, logger)
}

func newRateLimiter(cfg config.Config) *httpmiddleware.RateLimiter {
	return httpmiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			logger.Info("http server starting",
				zap.String("addr", addr),
				zap.String("env", cfg.Environment),
				zap.String("callback_url", cfg.CallbackURLFor("google")),
			)

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
