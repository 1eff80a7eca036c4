// Package pipeline собирает общие части процессов рассылки: журнал отправок,
// отправителя заданий и HTTP-сервер метрик.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/nutrition-reminders/internal/cache"
	"github.com/magabrotheeeer/nutrition-reminders/internal/config"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/webpush"
	"github.com/magabrotheeeer/nutrition-reminders/internal/metrics"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/delivery"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/ledger"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/sender"
	"github.com/magabrotheeeer/nutrition-reminders/internal/storage/repository"
)

// ErrDatabaseNotReady база не стала доступной за отведённые попытки.
var ErrDatabaseNotReady = errors.New("database not ready after retries")

// WaitForDB ждёт, пока в базе появятся таблицы, созданные миграциями.
func WaitForDB(ctx context.Context, db *repository.Storage, attempts int, delay time.Duration) error {
	for range attempts {
		if err := repository.CheckDatabaseReady(db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return ErrDatabaseNotReady
}

// NewLedger создаёт журнал отправок поверх выбранного в конфиге хранилища.
// Для redis возвращает и клиент, который нужно закрыть при остановке; для
// postgres клиент равен nil.
func NewLedger(ctx context.Context, cfg *config.Config, db *repository.Storage, log *slog.Logger) (*ledger.Ledger, *cache.Cache, error) {
	const op = "pipeline.NewLedger"

	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		store := cache.NewMarkerStore(c, cfg.MarkerRetention)
		return ledger.New(store, cfg.LedgerTimeout, log), c, nil
	default:
		return ledger.New(db, cfg.LedgerTimeout, log), nil, nil
	}
}

// NewSender собирает обработчик заданий: Web Push клиент, рассылку по
// устройствам с ограничением частоты и журнал отправок.
func NewSender(cfg *config.Config, db *repository.Storage, l *ledger.Ledger, m *metrics.Metrics, log *slog.Logger) (*sender.SenderService, error) {
	const op = "pipeline.NewSender"

	if err := cfg.ValidatePush(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pusher, err := webpush.New(webpush.Options{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.Subscriber,
		TTL:             time.Duration(cfg.Push.TTL) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	deliverer := delivery.NewService(db, pusher, limiter, cfg.Push.Timeout, log)
	return sender.NewSenderService(l, deliverer, time.Now, m, log), nil
}

// NewMetricsServer HTTP-сервер, отдающий метрики из gatherer на /metrics.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ServeMetrics обслуживает srv до отмены ctx.
func ServeMetrics(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server starting on", slog.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(timeoutCtx)
	}
}
