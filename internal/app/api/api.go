package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/nutrition-reminders/internal/cache"
	"github.com/magabrotheeeer/nutrition-reminders/internal/config"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/jwt"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/migrations"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/entitlement"
	"github.com/magabrotheeeer/nutrition-reminders/internal/storage/repository"
)

// App представляет HTTP API.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New подключает хранилище, применяет миграции и собирает маршруты.
// Без Redis API работает, читая подписки напрямую из базы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{logger: logger, db: db}

	var subscriptionCache entitlement.Cache
	if cfg.AddressRedis != "" {
		cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis unavailable, serving without cache", sl.Err(err))
		} else {
			a.cache = cacheRedis
			subscriptionCache = cacheRedis
		}
	}

	entitlementService := entitlement.NewService(db, subscriptionCache, nil, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Entitlements: entitlementService,
		Endpoints:    db,
		DB:           db.DB,
		Tokens:       jwt.NewVerifier(cfg.JWTSecretKey),
		Limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		Metrics:      promhttp.Handler(),
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
