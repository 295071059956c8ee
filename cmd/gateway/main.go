// Command gateway runs the notification admission API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/circuitbreaker"
	"github.com/dmitrymomot/courier/pkg/config"
	"github.com/dmitrymomot/courier/pkg/correlation"
	"github.com/dmitrymomot/courier/pkg/httpserver"
	"github.com/dmitrymomot/courier/pkg/idempotency"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/ratelimiter"
	"github.com/dmitrymomot/courier/pkg/redis"
	"github.com/dmitrymomot/courier/pkg/status"
	"github.com/dmitrymomot/courier/svc/admission"
)

type appConfig struct {
	Logger  logger.Config
	HTTP    httpserver.Config
	Redis   redis.Config
	Broker  broker.Config
	Limiter ratelimiter.Config
	Breaker circuitbreaker.Config

	StatusTTL      time.Duration `env:"STATUS_TTL" envDefault:"24h"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"1h"`
}

func main() {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		slog.Error("failed to load config", logger.Error(err))
		os.Exit(1)
	}

	log := logger.FromConfig(cfg.Logger, logger.WithContextExtractors(correlation.LoggerExtractor()))
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	mq, err := broker.Dial(ctx, cfg.Broker,
		broker.WithLogger(log),
		broker.WithQueues(notification.ChannelEmail.String(), notification.ChannelPush.String()))
	if err != nil {
		return err
	}
	defer mq.Close()
	if err := mq.DeclareTopology(); err != nil {
		return err
	}

	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(rdb), cfg.Limiter,
		ratelimiter.WithKeyFunc(notification.RateLimitKey),
		ratelimiter.WithLogger(log))
	if err != nil {
		return err
	}

	breaker := circuitbreaker.New(admission.BreakerName,
		append(cfg.Breaker.Options(), circuitbreaker.WithLogger(log))...)

	ctrl, err := admission.New(
		idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL),
		limiter,
		status.NewRedisStore(rdb, cfg.StatusTTL),
		mq,
		admission.WithBreaker(breaker),
		admission.WithLogger(log))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(correlation.Middleware)
	r.Get("/health", httpserver.HealthHandler(cfg.Logger.ServiceName, log,
		httpserver.Check{Name: "redis", Probe: redis.Healthcheck(rdb)},
		httpserver.Check{Name: "broker", Probe: mq.Healthcheck}))
	admission.NewHandler(ctrl, log).Routes(r)

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, r)
	})

	log.InfoContext(ctx, "gateway started", "addr", cfg.HTTP.Addr)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
