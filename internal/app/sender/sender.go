// Package sender собирает процесс отправителя: читает задания из очереди
// RabbitMQ и выполняет их через журнал отправок и Web Push.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/nutrition-reminders/internal/app/pipeline"
	"github.com/magabrotheeeer/nutrition-reminders/internal/cache"
	"github.com/magabrotheeeer/nutrition-reminders/internal/config"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/metrics"
	senderservice "github.com/magabrotheeeer/nutrition-reminders/internal/services/sender"
	"github.com/magabrotheeeer/nutrition-reminders/internal/storage/repository"
)

// App представляет приложение отправителя.
type App struct {
	senderService *senderservice.SenderService
	db            *repository.Storage
	redis         *cache.Cache
	conn          *amqp.Connection
	ch            *amqp.Channel
	metricsServer *http.Server
	queue         string
	concurrency   int
	requeueDelay  time.Duration
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправителя.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("rabbitmq url is required: %w", config.ErrInvalid)
	}

	a := &App{
		queue:        cfg.Queue,
		concurrency:  cfg.Concurrency,
		requeueDelay: cfg.RequeueDelay,
		logger:       logger,
	}

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

	senderService, err := pipeline.NewSender(cfg, db, l, m, logger)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to init sender: %w", err)
	}
	a.senderService = senderService

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.conn = conn

	queues := []rabbitmq.QueueConfig{{QueueName: cfg.Queue, RoutingKey: cfg.RoutingKey}}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Concurrency, queues)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	a.ch = ch
	a.metricsServer = pipeline.NewMetricsServer(cfg.MetricsAddr, registry)

	return a, nil
}

// Run читает очередь до отмены ctx и дожидается начатых обработчиков.
func (a *App) Run(ctx context.Context) error {
	defer a.closeResources()

	wg, err := rabbitmq.ConsumerMessage(ctx, a.ch, a.queue, a.concurrency, a.requeueDelay, a.logger, a.senderService.HandleMessage)
	if err != nil {
		return err
	}
	a.logger.Info("sender consuming", slog.String("queue", a.queue))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.ServeMetrics(gctx, a.metricsServer, a.logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		wg.Wait()
		return nil
	})
	return g.Wait()
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
