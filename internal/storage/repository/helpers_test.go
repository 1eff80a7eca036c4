package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/nutrition-reminders/internal/migrations"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// testDataFactory создаёт тестовые записи напрямую через SQL.
type testDataFactory struct {
	storage *Storage
}

func (f *testDataFactory) createSubscription(t *testing.T, sub models.Subscription) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	_, err := f.storage.DB.Exec(`INSERT INTO subscriptions
		(id, user_uid, plan, is_active, trial_anchor, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.UserUID, string(sub.Plan), sub.IsActive, sub.TrialAnchor, sub.PeriodStart, sub.PeriodEnd)
	require.NoError(t, err)
}

func (f *testDataFactory) createSchedule(t *testing.T, s models.UserSchedule) {
	p := s.Preferences
	_, err := f.storage.DB.Exec(`INSERT INTO notification_preferences
		(user_uid, goal, timezone, hydration, meals, workouts, motivation, weight_loss_tips, muscle_gain_tips)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.UserUID, string(s.Goal), s.Timezone, p.Hydration, p.Meals, p.Workouts,
		p.Motivation, p.WeightLossTips, p.MuscleGainTips)
	require.NoError(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
