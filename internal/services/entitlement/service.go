package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// subscriptionTTL время жизни записи подписки в кеше. Кешируется сама запись,
// а не результат Resolve, поэтому истечение периода видно сразу.
const subscriptionTTL = 30 * time.Second

// SubscriptionRepository описывает чтение подписок из хранилища.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Service отдаёт доступ пользователя для API и проверок функций.
type Service struct {
	repo  SubscriptionRepository
	cache Cache
	now   func() time.Time
	log   *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo SubscriptionRepository, cache Cache, now func() time.Time, log *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:  repo,
		cache: cache,
		now:   now,
		log:   log,
	}
}

// Get возвращает доступ пользователя на текущий момент.
func (s *Service) Get(ctx context.Context, userUID string) (Entitlement, error) {
	const op = "entitlement.Get"

	sub, err := s.subscription(ctx, userUID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}
	return Resolve(*sub, s.now()), nil
}

func (s *Service) subscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	cacheKey := "subscription:" + userUID
	if s.cache != nil {
		var cached models.Subscription
		found, err := s.cache.Get(cacheKey, &cached)
		if err != nil {
			s.log.Warn("failed to read subscription from cache", slog.String("key", cacheKey), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	sub, err := s.repo.GetSubscription(ctx, userUID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(cacheKey, sub, subscriptionTTL); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return sub, nil
}
