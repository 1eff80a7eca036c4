package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

const markerPrefix = "dispatch:marker:"

// MarkerStore хранит маркеры отправки в Redis. Каждый маркер живёт
// retention и удаляется самим Redis, поэтому PurgeMarkers ничего не делает.
type MarkerStore struct {
	cache     *Cache
	retention time.Duration
}

// NewMarkerStore создает хранилище маркеров поверх подключения к Redis.
func NewMarkerStore(c *Cache, retention time.Duration) *MarkerStore {
	return &MarkerStore{
		cache:     c,
		retention: retention,
	}
}

func markerKey(key models.MarkerKey) string {
	return markerPrefix + key.String()
}

// InsertMarker занимает ключ через SET NX.
func (s *MarkerStore) InsertMarker(ctx context.Context, key models.MarkerKey) (bool, error) {
	const op = "cache.InsertMarker"
	ok, err := s.cache.Db.SetNX(ctx, markerKey(key), time.Now().Unix(), s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// DeleteMarker освобождает ключ.
func (s *MarkerStore) DeleteMarker(ctx context.Context, key models.MarkerKey) error {
	const op = "cache.DeleteMarker"
	if err := s.cache.Db.Del(ctx, markerKey(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurgeMarkers маркеры истекают по TTL.
func (s *MarkerStore) PurgeMarkers(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
