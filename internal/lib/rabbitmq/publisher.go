package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение в RabbitMQ в формате JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует сообщения с фиксированным ключом маршрутизации.
// amqp.Channel нельзя использовать из нескольких горутин одновременно,
// поэтому публикации сериализуются.
type Publisher struct {
	mu         sync.Mutex
	ch         *amqp.Channel
	routingKey string
}

// NewPublisher создает Publisher поверх канала.
func NewPublisher(ch *amqp.Channel, routingKey string) *Publisher {
	return &Publisher{
		ch:         ch,
		routingKey: routingKey,
	}
}

// Publish отправляет сообщение в Exchange.
func (p *Publisher) Publish(ctx context.Context, message any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rabbitmq.Publish: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishMessage(p.ch, Exchange, p.routingKey, message)
}
