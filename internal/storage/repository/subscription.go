package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

const subscriptionColumns = `id, user_uid, plan, is_active, trial_anchor, period_start, period_end`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		plan        string
		periodStart sql.NullTime
		periodEnd   sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserUID, &plan, &sub.IsActive, &sub.TrialAnchor, &periodStart, &periodEnd); err != nil {
		return nil, err
	}
	sub.Plan = models.Plan(plan)
	if periodStart.Valid {
		t := periodStart.Time
		sub.PeriodStart = &t
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		sub.PeriodEnd = &t
	}
	return &sub, nil
}

// GetSubscription возвращает подписку пользователя.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListExpiringSubscriptions возвращает платные подписки, у которых
// period_end попадает в интервал [from, to].
func (s *Storage) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListExpiringSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE plan <> 'free'
			    AND period_end IS NOT NULL
			    AND period_end BETWEEN $1 AND $2
			  ORDER BY period_end`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
