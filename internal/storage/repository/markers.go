package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// InsertMarker атомарно записывает маркер отправки.
// false без ошибки означает, что маркер уже есть и отправку выполнил кто-то другой.
func (s *Storage) InsertMarker(ctx context.Context, key models.MarkerKey) (bool, error) {
	const op = "storage.InsertMarker"

	query := `INSERT INTO dispatch_markers (user_uid, category, slot_id)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_uid, category, slot_id) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query, key.UserUID, string(key.Category), key.SlotID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// DeleteMarker удаляет маркер отправки.
func (s *Storage) DeleteMarker(ctx context.Context, key models.MarkerKey) error {
	const op = "storage.DeleteMarker"

	query := `DELETE FROM dispatch_markers
			  WHERE user_uid = $1 AND category = $2 AND slot_id = $3`
	if _, err := s.DB.ExecContext(ctx, query, key.UserUID, string(key.Category), key.SlotID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PurgeMarkers удаляет маркеры, созданные раньше before.
func (s *Storage) PurgeMarkers(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.PurgeMarkers"

	result, err := s.DB.ExecContext(ctx, `DELETE FROM dispatch_markers WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
