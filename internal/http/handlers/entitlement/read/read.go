// Package read реализует HTTP-обработчик текущего уровня доступа пользователя.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/nutrition-reminders/internal/http/middlewarectx"
	"github.com/magabrotheeeer/nutrition-reminders/internal/http/response"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/entitlement"
	"github.com/magabrotheeeer/nutrition-reminders/internal/storage/repository"
)

// Handler отдаёт доступ пользователя из токена.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service вычисляет доступ пользователя.
type Service interface {
	Get(ctx context.Context, userUID string) (entitlement.Entitlement, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущий уровень доступа
// @Description Возвращает тариф, остаток пробного и оплаченного периода и состояние доступа.
// @Tags Entitlement
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entitlement.Entitlement
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /entitlement [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.read"
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

	res, err := h.service.Get(r.Context(), userUID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("subscription not found", slog.String("user_uid", userUID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	}
	if err != nil {
		log.Error("failed to resolve entitlement", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not resolve entitlement"))
		return
	}

	log.Debug("entitlement resolved", slog.String("state", string(res.State)))
	render.JSON(w, r, res)
}
