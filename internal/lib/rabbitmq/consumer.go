package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
)

// ConsumerMessage читает очередь и обрабатывает сообщения, не более
// concurrency одновременно. Ошибка обработчика возвращает сообщение в очередь
// не раньше чем через retryDelay, и на это время обработчик держит свой слот.
// Возвращённый WaitGroup завершается, когда после отмены ctx или закрытия
// канала отработали все начатые обработчики.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, concurrency int,
	retryDelay time.Duration, log *slog.Logger, handler func([]byte) error) (*sync.WaitGroup, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return consume(ctx, delivery, concurrency, retryDelay, log, handler), nil
}

func consume(ctx context.Context, delivery <-chan amqp.Delivery, concurrency int,
	retryDelay time.Duration, log *slog.Logger, handler func([]byte) error) *sync.WaitGroup {
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				if ctx.Err() != nil {
					_ = d.Nack(false, true)
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer func() {
						<-sem
						wg.Done()
					}()
					handle(ctx, d, retryDelay, log, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return &wg
}

func handle(ctx context.Context, d amqp.Delivery, retryDelay time.Duration, log *slog.Logger, handler func([]byte) error) {
	if err := handler(d.Body); err != nil {
		log.Warn("message handler failed, requeue",
			sl.Err(err),
			slog.Bool("redelivered", d.Redelivered),
			slog.Duration("delay", retryDelay),
		)
		waitRetry(ctx, retryDelay)
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}

// waitRetry ждёт delay или отмены ctx.
func waitRetry(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
