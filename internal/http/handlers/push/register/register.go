// Package register реализует HTTP-обработчик регистрации push-эндпоинта устройства.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/nutrition-reminders/internal/http/middlewarectx"
	"github.com/magabrotheeeer/nutrition-reminders/internal/http/response"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// Handler регистрирует эндпоинт для пользователя из токена.
type Handler struct {
	log      *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// Repository хранилище эндпоинтов.
type Repository interface {
	UpsertEndpoint(ctx context.Context, ep models.DeliveryEndpoint) (string, error)
}

// New создает новый Handler.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{
		log:      log,
		repo:     repo,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Зарегистрировать push-эндпоинт
// @Description Сохраняет push-подписку браузера. Повторная регистрация того же эндпоинта обновляет ключи.
// @Tags Push
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyEndpoint true "Push-подписка браузера"
// @Success 200 {object} response.OKResponse
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /push/endpoints [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.push.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok {
		log.Error("user_uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummyEndpoint
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		var verrs validator.ValidationErrors
		if errs, ok := err.(validator.ValidationErrors); ok {
			verrs = errs
		}
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	id, err := h.repo.UpsertEndpoint(r.Context(), models.DeliveryEndpoint{
		UserUID:   userUID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		log.Error("failed to register endpoint", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register endpoint"))
		return
	}

	log.Info("push endpoint registered", slog.String("endpoint_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id": id,
	}))
}
