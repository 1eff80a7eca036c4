package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// UpsertEndpoint регистрирует push-эндпоинт. Повторная регистрация того же
// эндпоинта обновляет ключи и владельца и возвращает прежний ID.
func (s *Storage) UpsertEndpoint(ctx context.Context, ep models.DeliveryEndpoint) (string, error) {
	const op = "storage.UpsertEndpoint"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO delivery_endpoints (id, user_uid, endpoint, p256dh, auth, user_agent)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (endpoint) DO UPDATE
			  SET user_uid = EXCLUDED.user_uid,
			      p256dh = EXCLUDED.p256dh,
			      auth = EXCLUDED.auth,
			      user_agent = EXCLUDED.user_agent
			  RETURNING id`
	var id string
	err := s.DB.QueryRowContext(ctx, query,
		uuid.NewString(), ep.UserUID, ep.Endpoint, ep.P256dh, ep.Auth, ep.UserAgent).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListEndpoints возвращает все push-эндпоинты пользователя.
func (s *Storage) ListEndpoints(ctx context.Context, userUID string) ([]*models.DeliveryEndpoint, error) {
	const op = "storage.ListEndpoints"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, endpoint, p256dh, auth, user_agent, created_at
			  FROM delivery_endpoints
			  WHERE user_uid = $1
			  ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.DeliveryEndpoint
	for rows.Next() {
		var item models.DeliveryEndpoint
		if err := rows.Scan(&item.ID, &item.UserUID, &item.Endpoint, &item.P256dh,
			&item.Auth, &item.UserAgent, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteEndpoint удаляет эндпоинт по ID и возвращает количество удалённых строк.
func (s *Storage) DeleteEndpoint(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteEndpoint"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM delivery_endpoints WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
