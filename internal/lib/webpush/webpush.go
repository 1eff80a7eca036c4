// Package webpush отправляет уведомления через Web Push (VAPID)
// и переводит ответы push-сервиса в ошибки, понятные рассылке.
package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

var (
	// ErrGone push-сервис сообщил, что подписка устройства больше не существует (404/410).
	ErrGone = errors.New("push endpoint gone")
	// ErrRejected push-сервис отклонил запрос по временной причине (429, 5xx и т.п.).
	ErrRejected = errors.New("push rejected")
	// ErrNoCredentials не заданы VAPID-ключи или subscriber.
	ErrNoCredentials = errors.New("vapid credentials are not configured")
)

// Options настройки клиента.
type Options struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string        // mailto: или https: контакт отправителя
	TTL             time.Duration // сколько push-сервис хранит сообщение для офлайн-устройства
	HTTPClient      wp.HTTPClient // при nil используется http.Client по умолчанию
}

// Client отправляет сообщения на push-эндпоинты.
type Client struct {
	opts wp.Options
}

// New создает клиента. Без ключей возвращает ErrNoCredentials: это ошибка
// конфигурации, и сервис не должен стартовать.
func New(o Options) (*Client, error) {
	const op = "webpush.New"
	if o.VAPIDPublicKey == "" || o.VAPIDPrivateKey == "" || o.Subscriber == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoCredentials)
	}
	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		opts: wp.Options{
			HTTPClient:      httpClient,
			Subscriber:      o.Subscriber,
			VAPIDPublicKey:  o.VAPIDPublicKey,
			VAPIDPrivateKey: o.VAPIDPrivateKey,
			TTL:             int(o.TTL / time.Second),
			Urgency:         wp.UrgencyNormal,
		},
	}, nil
}

// Push отправляет payload на эндпоинт. Возвращает nil при 2xx,
// ErrGone при 404/410, ErrRejected при остальных ответах и
// исходную ошибку при сетевых сбоях и таймаутах.
func (c *Client) Push(ctx context.Context, endpoint *models.DeliveryEndpoint, payload []byte) error {
	const op = "webpush.Push"

	sub := &wp.Subscription{
		Endpoint: endpoint.Endpoint,
		Keys: wp.Keys{
			P256dh: endpoint.P256dh,
			Auth:   endpoint.Auth,
		},
	}
	opts := c.opts

	resp, err := wp.SendNotificationWithContext(ctx, payload, sub, &opts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, ErrGone)
	default:
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, ErrRejected)
	}
}

// GenerateVAPIDKeys создает пару VAPID-ключей для конфигурации.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return wp.GenerateVAPIDKeys()
}
