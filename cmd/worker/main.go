// Command worker consumes the channel queues and delivers notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/broker"
	"github.com/dmitrymomot/courier/pkg/config"
	"github.com/dmitrymomot/courier/pkg/correlation"
	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/httpserver"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/pg"
	"github.com/dmitrymomot/courier/pkg/push"
	"github.com/dmitrymomot/courier/pkg/redis"
	"github.com/dmitrymomot/courier/pkg/retry"
	"github.com/dmitrymomot/courier/pkg/status"
	"github.com/dmitrymomot/courier/svc/deadletter"
	"github.com/dmitrymomot/courier/svc/dispatch"
	"github.com/dmitrymomot/courier/svc/templates"
	"github.com/dmitrymomot/courier/svc/users"
)

// User directory backends.
const (
	directoryHTTP     = "http"
	directoryPostgres = "postgres"
	directoryStatic   = "static"
)

type appConfig struct {
	Logger    logger.Config
	HTTP      httpserver.Config
	Redis     redis.Config
	Broker    broker.Config
	Worker    dispatch.Config
	Templates templates.Config
	Users     users.HTTPConfig
	UserCache users.CacheConfig
	Push      push.Config

	Channels  []string      `env:"WORKER_CHANNELS" envDefault:"email,push" envSeparator:","`
	Directory string        `env:"USER_DIRECTORY" envDefault:"http"`
	StatusTTL time.Duration `env:"STATUS_TTL" envDefault:"24h"`
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
		log.Error("worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	channels := make([]notification.Channel, 0, len(cfg.Channels))
	queues := make([]string, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		ch, err := notification.ParseChannel(name)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
		queues = append(queues, ch.String())
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	mq, err := broker.Dial(ctx, cfg.Broker, broker.WithLogger(log), broker.WithQueues(queues...))
	if err != nil {
		return err
	}
	defer mq.Close()
	if err := mq.DeclareTopology(); err != nil {
		return err
	}

	checks := []httpserver.Check{
		{Name: "redis", Probe: redis.Healthcheck(rdb)},
		{Name: "broker", Probe: mq.Healthcheck},
	}

	directory, check, cleanup, err := userDirectory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if check != nil {
		checks = append(checks, *check)
	}

	renderer, err := templates.New(cfg.Templates)
	if err != nil {
		return err
	}

	deps := dispatch.Deps{
		Broker:    mq,
		Users:     users.NewCachedDirectory(directory, cfg.UserCache),
		Templates: renderer,
		Statuses:  status.NewRedisStore(rdb, cfg.StatusTTL),
		Sink:      deadletter.New(mq, deadletter.WithLogger(log)),
	}

	opts := append(cfg.Worker.Options(),
		dispatch.WithRetry(retry.New(append(cfg.Worker.Retry.Options(), retry.WithLogger(log))...)),
		dispatch.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		d := deps
		d.Sender, err = sender(ch, cfg, log)
		if err != nil {
			return err
		}
		w, err := dispatch.New(ch, d, opts...)
		if err != nil {
			return err
		}
		g.Go(w.Run(ctx))
	}

	r := chi.NewRouter()
	r.Get("/health", httpserver.HealthHandler(cfg.Logger.ServiceName, log, checks...))
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	g.Go(func() error {
		return srv.Run(ctx, r)
	})

	log.InfoContext(ctx, "worker started", slog.Any("channels", cfg.Channels))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// userDirectory builds the configured backend, plus an optional health check
// and a cleanup func.
func userDirectory(ctx context.Context, cfg appConfig, log *slog.Logger) (users.Directory, *httpserver.Check, func(), error) {
	noop := func() {}

	switch cfg.Directory {
	case directoryHTTP:
		d, err := users.NewHTTPDirectory(cfg.Users)
		return d, nil, noop, err

	case directoryPostgres:
		pgCfg, err := config.Load[pg.Config]()
		if err != nil {
			return nil, nil, noop, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, noop, err
		}
		if pgCfg.Migrate {
			if err := pg.Migrate(ctx, pool, users.Migrations, users.MigrationsDir, pgCfg.MigrationsTable, log); err != nil {
				pool.Close()
				return nil, nil, noop, err
			}
		}
		check := &httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)}
		return users.NewPostgresDirectory(pool), check, pool.Close, nil

	case directoryStatic:
		log.WarnContext(ctx, "using an empty static user directory, contact details come from request variables")
		return users.NewStaticDirectory(), nil, noop, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown user directory %q", cfg.Directory)
	}
}

func sender(ch notification.Channel, cfg appConfig, log *slog.Logger) (dispatch.Sender, error) {
	switch ch {
	case notification.ChannelEmail:
		emailCfg, err := config.Load[email.Config]()
		if err != nil {
			return nil, err
		}
		if emailCfg.DevDir != "" || !emailCfg.UsePostmark() {
			dir := emailCfg.DevDir
			if dir == "" {
				dir = "./tmp/emails"
			}
			log.Warn("postmark not configured, writing emails to disk", slog.String("dir", dir))
			return dispatch.NewEmailSender(email.NewDevSender(dir)), nil
		}
		client, err := email.NewPostmarkClient(emailCfg)
		if err != nil {
			return nil, err
		}
		return dispatch.NewEmailSender(client), nil

	case notification.ChannelPush:
		if !cfg.Push.Configured() {
			log.Warn("onesignal not configured, push notifications are only logged")
			return dispatch.NewPushSender(push.NewLogSender(log)), nil
		}
		client, err := push.NewOneSignalClient(cfg.Push)
		if err != nil {
			return nil, err
		}
		return dispatch.NewPushSender(client), nil
	}
	return nil, fmt.Errorf("%w: %q", notification.ErrInvalidChannel, ch)
}
