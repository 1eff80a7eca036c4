// Package sender обрабатывает задания на отправку: занимает ключ в журнале
// отправок и рассылает уведомление по устройствам пользователя.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/metrics"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// Ledger журнал отправок.
type Ledger interface {
	Claim(ctx context.Context, key models.MarkerKey) bool
	Release(ctx context.Context, key models.MarkerKey) error
}

// Deliverer рассылает уведомление по устройствам пользователя.
type Deliverer interface {
	Deliver(ctx context.Context, userUID string, payload models.Payload) (models.DeliveryReport, error)
}

// SenderService обработчик заданий.
type SenderService struct {
	ledger    Ledger
	deliverer Deliverer
	now       func() time.Time
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService. m может быть nil.
func NewSenderService(ledger Ledger, deliverer Deliverer, now func() time.Time, m *metrics.Metrics, log *slog.Logger) *SenderService {
	if now == nil {
		now = time.Now
	}
	return &SenderService{
		ledger:    ledger,
		deliverer: deliverer,
		now:       now,
		metrics:   m,
		log:       log,
	}
}

// Process выполняет одно задание: Claim, затем Deliver.
//
// Задание после NotAfter отбрасывается. Занятый ключ означает, что
// уведомление уже отправил другой экземпляр. Если Deliver вернул ошибку,
// маркер снимается и ошибка возвращается вызывающему, чтобы задание можно
// было повторить.
func (s *SenderService) Process(ctx context.Context, job models.Job) error {
	const op = "sender.Process"
	category := string(job.Key.Category)
	log := s.log.With(slog.String("op", op), slog.String("key", job.Key.String()))

	if !job.NotAfter.IsZero() && s.now().After(job.NotAfter) {
		log.Info("dropping stale job", slog.Time("not_after", job.NotAfter))
		s.metrics.Job(category, metrics.OutcomeStale)
		return nil
	}

	if !s.ledger.Claim(ctx, job.Key) {
		s.metrics.Job(category, metrics.OutcomeDuplicate)
		return nil
	}

	report, err := s.deliverer.Deliver(ctx, job.Key.UserUID, job.Payload)
	if err != nil {
		s.metrics.Job(category, metrics.OutcomeFailed)
		// контекст тика мог истечь, а маркер нужно снять в любом случае
		if relErr := s.ledger.Release(context.WithoutCancel(ctx), job.Key); relErr != nil {
			log.Error("failed to release dispatch marker", sl.Err(relErr))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Job(category, metrics.OutcomeDelivered)
	s.metrics.Deliveries(report.Sent, report.Pruned, report.Failed)
	return nil
}

// HandleMessage обработчик сообщений очереди. Некорректное сообщение
// подтверждается и пропускается, чтобы не возвращаться в очередь бесконечно.
func (s *SenderService) HandleMessage(body []byte) error {
	var job models.Job
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("failed to unmarshal job, dropping", sl.Err(err))
		return nil
	}
	if job.Key.UserUID == "" || job.Key.Category == "" || job.Key.SlotID == "" {
		s.log.Error("job without marker key, dropping", slog.String("key", job.Key.String()))
		return nil
	}
	return s.Process(context.Background(), job)
}
