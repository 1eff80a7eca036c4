package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// MemoryStore хранилище маркеров в памяти. Не переживает перезапуск процесса,
// поэтому годится только для тестов и локального запуска.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[models.MarkerKey]time.Time
	now     func() time.Time
}

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markers: make(map[models.MarkerKey]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) InsertMarker(_ context.Context, key models.MarkerKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[key]; ok {
		return false, nil
	}
	s.markers[key] = s.now()
	return true, nil
}

func (s *MemoryStore) DeleteMarker(_ context.Context, key models.MarkerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, key)
	return nil
}

func (s *MemoryStore) PurgeMarkers(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, created := range s.markers {
		if created.Before(before) {
			delete(s.markers, k)
			n++
		}
	}
	return n, nil
}

// Len возвращает количество маркеров.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}
