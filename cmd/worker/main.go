package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapak-id/backend-lapak/internal/cart"
	"github.com/lapak-id/backend-lapak/internal/catalog"
	"github.com/lapak-id/backend-lapak/internal/config"
	"github.com/lapak-id/backend-lapak/internal/coupon"
	"github.com/lapak-id/backend-lapak/internal/events"
	"github.com/lapak-id/backend-lapak/internal/lock"
	"github.com/lapak-id/backend-lapak/internal/obs"
)

// Task types handled by the worker. Sweeps run on the scheduler; event
// delivery tasks arrive from the API process.
const (
	taskFlashSaleSweep = "flashsale:sweep"
	taskCouponExpire   = "coupon:expire"
	taskCartSweep      = "carts:sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics("lapak", prometheus.DefaultRegisterer)

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	catalogStore := catalog.NewStore(pool)
	couponStore := coupon.NewStore(pool)
	cartStore := cart.NewStore(pool)
	locker := lock.Locker{R: redisClient}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(taskFlashSaleSweep, func(ctx context.Context, _ *asynq.Task) error {
		// Single flight across worker replicas.
		return locker.WithLock(ctx, "lock:flashsale-sweep", 30*time.Second, func(ctx context.Context) error {
			swept, err := catalogStore.DeactivateEndedSales(ctx, time.Now())
			result := "ok"
			if err != nil {
				result = "error"
			}
			if obs.FlashSaleSweepTotal != nil {
				obs.FlashSaleSweepTotal.WithLabelValues(result).Inc()
			}
			if err != nil {
				return err
			}
			if swept > 0 {
				logger.Info().Int64("deactivated", swept).Msg("flash sale sweep")
			}
			return nil
		})
	})
	mux.HandleFunc(taskCouponExpire, func(ctx context.Context, _ *asynq.Task) error {
		return locker.WithLock(ctx, "lock:coupon-expire", 30*time.Second, func(ctx context.Context) error {
			swept, err := couponStore.DeactivateExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if swept > 0 {
				logger.Info().Int64("deactivated", swept).Msg("coupon expiry sweep")
			}
			return nil
		})
	})
	mux.HandleFunc(taskCartSweep, func(ctx context.Context, _ *asynq.Task) error {
		return locker.WithLock(ctx, "lock:cart-sweep", 30*time.Second, func(ctx context.Context) error {
			swept, err := cartStore.DeleteExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if swept > 0 {
				logger.Info().Int64("deleted", swept).Msg("expired cart sweep")
			}
			return nil
		})
	})
	sink := events.NewWebhookSink(cfg.EventWebhookURL, 10*time.Second)
	mux.HandleFunc(events.TaskDeliverEvent, func(ctx context.Context, t *asynq.Task) error {
		ev, err := events.DecodeTask(t)
		if err != nil {
			return err
		}
		if err := sink.Deliver(ctx, ev); err != nil {
			return err
		}
		logger.Info().
			Str("topic", ev.Topic).
			Str("event_id", ev.ID.String()).
			Msg("event delivered")
		return nil
	})

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
		Logger:      asynqLogger{logger},
	})

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	cron := fmt.Sprintf("@every %s", interval)
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: asynqLogger{logger}})
	for _, kind := range []string{taskFlashSaleSweep, taskCouponExpire, taskCartSweep} {
		if _, err := scheduler.Register(cron, asynq.NewTask(kind, nil)); err != nil {
			logger.Fatal().Err(err).Str("task", kind).Msg("register periodic task")
		}
	}

	logger.Info().Str("interval", interval.String()).Msg("worker starting")
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start asynq server")
	}

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
