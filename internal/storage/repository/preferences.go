package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// ListActiveSchedules возвращает страницу пользователей, у которых включена
// хотя бы одна категория уведомлений. Пагинация по user_uid: следующая
// страница начинается после afterUID, пустой afterUID означает первую страницу.
func (s *Storage) ListActiveSchedules(ctx context.Context, afterUID string, limit int) ([]*models.UserSchedule, error) {
	const op = "storage.ListActiveSchedules"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if afterUID == "" {
		afterUID = uuid.Nil.String()
	}

	query := `SELECT user_uid, goal, timezone, hydration, meals, workouts,
			      motivation, weight_loss_tips, muscle_gain_tips
			  FROM notification_preferences
			  WHERE (hydration OR meals OR workouts OR motivation
			         OR weight_loss_tips OR muscle_gain_tips)
			    AND user_uid > $1::uuid
			  ORDER BY user_uid
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, afterUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.UserSchedule
	for rows.Next() {
		var (
			item models.UserSchedule
			goal string
			p    = &item.Preferences
		)
		if err := rows.Scan(&item.UserUID, &goal, &item.Timezone, &p.Hydration, &p.Meals, &p.Workouts,
			&p.Motivation, &p.WeightLossTips, &p.MuscleGainTips); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.Goal = models.Goal(goal)
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
