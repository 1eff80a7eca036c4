// Package api предоставляет HTTP API: доступ пользователя и регистрацию
// push-эндпоинтов.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	// swagger-документация регистрируется в init
	_ "github.com/magabrotheeeer/nutrition-reminders/docs"
	"github.com/magabrotheeeer/nutrition-reminders/internal/http/handlers/entitlement/read"
	"github.com/magabrotheeeer/nutrition-reminders/internal/http/handlers/health"
	"github.com/magabrotheeeer/nutrition-reminders/internal/http/handlers/push/register"
	"github.com/magabrotheeeer/nutrition-reminders/internal/http/middlewarectx"
)

// Deps зависимости маршрутов.
type Deps struct {
	Entitlements read.Service
	Endpoints    register.Repository
	DB           health.Pinger
	Tokens       middlewarectx.TokenParser
	Limiter      *rate.Limiter
	Metrics      http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(deps.Limiter, logger))
			r.Get("/entitlement", read.New(logger, deps.Entitlements).ServeHTTP)
			r.Post("/push/endpoints", register.New(logger, deps.Endpoints).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.DB).ServeHTTP)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
