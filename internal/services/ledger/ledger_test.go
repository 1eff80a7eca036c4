package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertMarker(ctx context.Context, key models.MarkerKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteMarker(ctx context.Context, key models.MarkerKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) PurgeMarkers(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var testKey = models.MarkerKey{UserUID: "u1", Category: models.CategoryHydration, SlotID: "20240101-0800"}

func TestLedger_ClaimTwice(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, time.Second, newNoopLogger())

	assert.True(t, l.Claim(context.Background(), testKey))
	assert.False(t, l.Claim(context.Background(), testKey))

	// новый экземпляр над тем же хранилищем ведёт себя как после перезапуска
	restarted := New(store, time.Second, newNoopLogger())
	assert.False(t, restarted.Claim(context.Background(), testKey))
}

func TestLedger_ClaimFailsClosed(t *testing.T) {
	store := new(MockStore)
	store.On("InsertMarker", mock.Anything, testKey).Return(false, errors.New("connection refused")).Once()

	l := New(store, time.Second, newNoopLogger())
	assert.False(t, l.Claim(context.Background(), testKey))
	store.AssertExpectations(t)
}

func TestLedger_ClaimAppliesTimeout(t *testing.T) {
	store := new(MockStore)
	store.On("InsertMarker", mock.Anything, testKey).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	}).Return(true, nil).Once()

	l := New(store, 50*time.Millisecond, newNoopLogger())
	assert.True(t, l.Claim(context.Background(), testKey))
	store.AssertExpectations(t)
}

func TestLedger_Release(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, 0, newNoopLogger())

	require.True(t, l.Claim(context.Background(), testKey))
	require.NoError(t, l.Release(context.Background(), testKey))
	assert.True(t, l.Claim(context.Background(), testKey))

	failing := new(MockStore)
	failing.On("DeleteMarker", mock.Anything, testKey).Return(errors.New("db error")).Once()
	err := New(failing, 0, newNoopLogger()).Release(context.Background(), testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.Release")
}

func TestLedger_Purge(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	l := New(store, 0, newNoopLogger())

	require.True(t, l.Claim(context.Background(), testKey))
	store.now = func() time.Time { return base.Add(100 * 24 * time.Hour) }
	fresh := models.MarkerKey{UserUID: "u2", Category: models.CategoryMeals, SlotID: "20240411-1300"}
	require.True(t, l.Claim(context.Background(), fresh))

	n, err := l.Purge(context.Background(), base.Add(100*24*time.Hour).Add(-DefaultRetention))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.Len())
}

func TestLedger_ConcurrentClaims(t *testing.T) {
	l := New(NewMemoryStore(), time.Second, newNoopLogger())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Claim(context.Background(), testKey) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
