package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/adapter/cache"
	"github.com/loopchat/chatd/internal/bootstrap"
	"github.com/loopchat/chatd/internal/config"
	"github.com/loopchat/chatd/internal/database"
	httptransport "github.com/loopchat/chatd/internal/http"
	"github.com/loopchat/chatd/internal/http/handler"
	httpmiddleware "github.com/loopchat/chatd/internal/http/middleware"
	"github.com/loopchat/chatd/internal/jwt"
	"github.com/loopchat/chatd/internal/metrics"
	apimiddleware "github.com/loopchat/chatd/internal/middleware"
	"github.com/loopchat/chatd/internal/repository"
	"github.com/loopchat/chatd/internal/server"
	"github.com/loopchat/chatd/internal/service"
	"github.com/loopchat/chatd/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newUserRepository,
			newWorkspaceRepository,
			newTokenIssuer,
			newTokenVerifier,
			newRedisClient,
			newMemberCache,
			newMetricsRegistry,
			newMetricsCollector,
			newMetricsRecorder,
			newRateLimiter,
			service.NewAuthService,
			handler.NewAuthHandler,
			handler.NewWorkspaceHandler,
			handler.NewChatHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
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
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
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

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.MigrateOnStart {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	pool, err := database.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newWorkspaceRepository(pool *pgxpool.Pool) repository.WorkspaceRepository {
	return repository.NewPostgresWorkspaceRepo(pool)
}

func newTokenIssuer(cfg config.Config) (*jwt.Issuer, error) {
	key, err := jwt.ParseSigningKey(cfg.SigningKeyPEM)
	if err != nil {
		return nil, err
	}
	return jwt.NewIssuer(key), nil
}

func newTokenVerifier(cfg config.Config) (*jwt.Verifier, error) {
	if len(cfg.VerifyingKeyPEM) > 0 {
		key, err := jwt.ParseVerifyingKey(cfg.VerifyingKeyPEM)
		if err != nil {
			return nil, err
		}
		return jwt.NewVerifier(key), nil
	}

	// No separate verifying key configured; derive the public half from
	// the signing key.
	private, err := jwt.ParseSigningKey(cfg.SigningKeyPEM)
	if err != nil {
		return nil, err
	}
	return jwt.NewVerifier(private.Public().(ed25519.PublicKey)), nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

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

func newMemberCache(client redis.UniversalClient, cfg config.Config) service.MemberCache {
	if client == nil {
		return nil
	}
	return cache.NewRedisMemberCache(client, cfg.MemberCacheTTL)
}

func newMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newMetricsCollector(registry *prometheus.Registry) *metrics.Collector {
	return metrics.NewCollector(registry)
}

func newMetricsRecorder(collector *metrics.Collector) metrics.Recorder {
	return collector
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthMiddleware(verifier *jwt.Verifier, recorder metrics.Recorder) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Verifier: verifier, Metrics: recorder}
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
