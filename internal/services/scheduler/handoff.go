package scheduler

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/nutrition-reminders/internal/metrics"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// Processor выполняет задание в текущем процессе.
type Processor interface {
	Process(ctx context.Context, job models.Job) error
}

// InlineHandoff выполняет задание сразу, внутри тика.
type InlineHandoff struct {
	processor Processor
}

func NewInlineHandoff(p Processor) *InlineHandoff {
	return &InlineHandoff{processor: p}
}

func (h *InlineHandoff) Handoff(ctx context.Context, job models.Job) error {
	return h.processor.Process(ctx, job)
}

// Publisher публикует сообщение в очередь.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// QueueHandoff публикует задание в очередь, откуда его забирает отправитель.
// Очередь доставляет не менее одного раза, дубликаты отсекает журнал отправок.
type QueueHandoff struct {
	publisher Publisher
	metrics   *metrics.Metrics
}

func NewQueueHandoff(p Publisher, m *metrics.Metrics) *QueueHandoff {
	return &QueueHandoff{publisher: p, metrics: m}
}

func (h *QueueHandoff) Handoff(ctx context.Context, job models.Job) error {
	const op = "scheduler.QueueHandoff"
	if err := h.publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	h.metrics.Job(string(job.Key.Category), metrics.OutcomeQueued)
	return nil
}
