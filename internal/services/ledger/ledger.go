// Package ledger гарантирует, что каждое уведомление (пользователь, категория, слот)
// отправляется не более одного раза, даже при перезапуске или нескольких
// экземплярах планировщика.
//
// Запись-маркер вставляется атомарно в долговременное хранилище. Конфликт
// вставки означает «уже отправил кто-то другой» и ошибкой не считается.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// DefaultRetention срок хранения маркеров. Нужен только для ограничения
// объёма хранилища, на корректность не влияет.
const DefaultRetention = 90 * 24 * time.Hour

// Store долговременное хранилище маркеров.
type Store interface {
	// InsertMarker атомарно вставляет маркер; false, если маркер уже существует.
	InsertMarker(ctx context.Context, key models.MarkerKey) (bool, error)
	// DeleteMarker удаляет маркер.
	DeleteMarker(ctx context.Context, key models.MarkerKey) error
	// PurgeMarkers удаляет маркеры старше before и возвращает их количество.
	PurgeMarkers(ctx context.Context, before time.Time) (int64, error)
}

// Ledger журнал отправленных уведомлений.
type Ledger struct {
	store   Store
	timeout time.Duration
	log     *slog.Logger
}

// New создает новый экземпляр Ledger. timeout ограничивает каждое обращение к хранилищу.
func New(store Store, timeout time.Duration, log *slog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		timeout: timeout,
		log:     log,
	}
}

// Claim пытается занять ключ. При true вызывающий теперь отвечает за отправку.
// При ошибке хранилища возвращает false, и отправка пропускается.
func (l *Ledger) Claim(ctx context.Context, key models.MarkerKey) bool {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	ok, err := l.store.InsertMarker(ctx, key)
	if err != nil {
		l.log.Error("failed to claim dispatch marker, skipping send",
			slog.String("key", key.String()), sl.Err(err))
		return false
	}
	if !ok {
		l.log.Debug("dispatch marker already claimed", slog.String("key", key.String()))
	}
	return ok
}

// Release откатывает Claim после жёсткой ошибки доставки, чтобы повторная
// попытка могла занять ключ снова.
func (l *Ledger) Release(ctx context.Context, key models.MarkerKey) error {
	const op = "ledger.Release"
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	if err := l.store.DeleteMarker(ctx, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Purge удаляет маркеры старше before.
func (l *Ledger) Purge(ctx context.Context, before time.Time) (int64, error) {
	const op = "ledger.Purge"
	n, err := l.store.PurgeMarkers(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}
