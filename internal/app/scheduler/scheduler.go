// Package scheduler собирает процесс планировщика напоминаний: хранилище,
// журнал отправок, способ передачи заданий, метрики и gRPC health.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/nutrition-reminders/internal/app/pipeline"
	"github.com/magabrotheeeer/nutrition-reminders/internal/cache"
	"github.com/magabrotheeeer/nutrition-reminders/internal/config"
	"github.com/magabrotheeeer/nutrition-reminders/internal/grpc/server"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/clock"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/metrics"
	schedulerservice "github.com/magabrotheeeer/nutrition-reminders/internal/services/scheduler"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/window"
	"github.com/magabrotheeeer/nutrition-reminders/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	db               *repository.Storage
	redis            *cache.Cache
	conn             *amqp.Connection
	ch               *amqp.Channel
	metricsServer    *http.Server
	grpcServer       *server.Server
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db

	if err := pipeline.WaitForDB(ctx, db, 10, 3*time.Second); err != nil {
		a.closeResources()
		return nil, err
	}

	l, redisClient, err := pipeline.NewLedger(ctx, cfg, db, logger)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to init ledger: %w", err)
	}
	a.redis = redisClient

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var handoff schedulerservice.Handoff
	switch cfg.HandoffMode {
	case config.HandoffQueue:
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		a.conn = conn
		queues := []rabbitmq.QueueConfig{{QueueName: cfg.Queue, RoutingKey: cfg.RoutingKey}}
		ch, err := rabbitmq.SetupChannel(conn, 0, queues)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		a.ch = ch
		handoff = schedulerservice.NewQueueHandoff(rabbitmq.NewPublisher(ch, cfg.RoutingKey), m)
	default:
		senderService, err := pipeline.NewSender(cfg, db, l, m, logger)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("failed to init sender: %w", err)
		}
		handoff = schedulerservice.NewInlineHandoff(senderService)
	}

	matcher, err := window.NewMatcher(window.DefaultSchedule(), window.DefaultCatalog(rand.IntN))
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to build matcher: %w", err)
	}

	grpcServer, err := server.New(cfg.GRPCAddr, logger)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to listen gRPC: %w", err)
	}
	a.grpcServer = grpcServer
	a.metricsServer = pipeline.NewMetricsServer(cfg.MetricsAddr, registry)

	a.schedulerService = schedulerservice.NewSchedulerService(
		db,
		db,
		matcher,
		handoff,
		l,
		clock.Real{},
		m,
		schedulerservice.Options{
			Location:        cfg.Location(),
			Workers:         cfg.Workers,
			PageSize:        cfg.PageSize,
			TickTimeout:     cfg.TickTimeout,
			CheckHour:       cfg.CheckHour,
			Retention:       cfg.MarkerRetention,
			ExpiredLookback: cfg.ExpiredLookback,
			JobTTL:          cfg.JobTTL,
		},
		logger,
	)
	return a, nil
}

// Run запускает планировщик вместе с сервером метрик и gRPC health
// и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.closeResources()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.ServeMetrics(gctx, a.metricsServer, a.logger)
	})
	g.Go(func() error {
		return a.grpcServer.Run(gctx)
	})
	g.Go(func() error {
		a.grpcServer.SetServing("", true)
		defer a.grpcServer.SetServing("", false)
		return a.schedulerService.Run(gctx)
	})
	return g.Wait()
}

// RunOnce выполняет один тик и завершается. Используется для запуска
// по внешнему расписанию (cron, k8s CronJob).
func (a *App) RunOnce(ctx context.Context) error {
	defer a.closeResources()
	return a.schedulerService.RunOnce(ctx)
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
