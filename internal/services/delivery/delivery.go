// Package delivery рассылает уведомление на все push-эндпоинты пользователя
// и удаляет эндпоинты, которые push-сервис признал несуществующими.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/webpush"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// EndpointRepository хранилище push-эндпоинтов.
type EndpointRepository interface {
	ListEndpoints(ctx context.Context, userUID string) ([]*models.DeliveryEndpoint, error)
	DeleteEndpoint(ctx context.Context, id string) (int, error)
}

// Pusher отправляет payload на один эндпоинт.
// Ошибка, обёрнутая в webpush.ErrGone, означает постоянную ошибку.
type Pusher interface {
	Push(ctx context.Context, endpoint *models.DeliveryEndpoint, payload []byte) error
}

// Limiter ограничивает частоту обращений к push-сервису.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Service рассылка по устройствам пользователя.
type Service struct {
	repo    EndpointRepository
	pusher  Pusher
	limiter Limiter
	timeout time.Duration
	log     *slog.Logger
}

// NewService создает новый экземпляр Service. timeout ограничивает
// каждый вызов push-сервиса; limiter может быть nil.
func NewService(repo EndpointRepository, pusher Pusher, limiter Limiter, timeout time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		pusher:  pusher,
		limiter: limiter,
		timeout: timeout,
		log:     log,
	}
}

// Deliver отправляет уведомление на каждый эндпоинт пользователя независимо.
//
// Постоянная ошибка (404/410) удаляет эндпоинт. Временные ошибки
// оставляют эндпоинт и не повторяются в этом цикле: повтором служит
// следующее срабатывание категории. Пользователь без эндпоинтов не считается ошибкой.
// Ошибка возвращается только если не удалось загрузить список эндпоинтов.
func (s *Service) Deliver(ctx context.Context, userUID string, payload models.Payload) (models.DeliveryReport, error) {
	const op = "delivery.Deliver"
	var report models.DeliveryReport

	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	body, err := json.Marshal(payload)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	endpoints, err := s.repo.ListEndpoints(ctx, userUID)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	if len(endpoints) == 0 {
		log.Debug("user has no push endpoints")
		return report, nil
	}

	for _, ep := range endpoints {
		err := s.push(ctx, ep, body)
		switch {
		case err == nil:
			report.Sent++
		case errors.Is(err, webpush.ErrGone):
			if s.prune(ctx, ep, log) {
				report.Pruned++
			} else {
				report.Failed++
			}
		default:
			report.Failed++
			log.Warn("push failed, endpoint kept", slog.String("endpoint_id", ep.ID), sl.Err(err))
		}
	}

	log.Info("delivered notification",
		slog.Int("sent", report.Sent),
		slog.Int("pruned", report.Pruned),
		slog.Int("failed", report.Failed))
	return report, nil
}

func (s *Service) push(ctx context.Context, ep *models.DeliveryEndpoint, body []byte) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	pushCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pusher.Push(pushCtx, ep, body)
}

func (s *Service) prune(ctx context.Context, ep *models.DeliveryEndpoint, log *slog.Logger) bool {
	delCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.repo.DeleteEndpoint(delCtx, ep.ID); err != nil {
		log.Error("failed to prune gone endpoint", slog.String("endpoint_id", ep.ID), sl.Err(err))
		return false
	}
	log.Info("pruned gone endpoint", slog.String("endpoint_id", ep.ID))
	return true
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
