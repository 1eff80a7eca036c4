package models

import "time"

// DeliveryEndpoint push-подписка устройства пользователя (Web Push).
// Создаётся при регистрации клиента, удаляется только при постоянной
// ошибке доставки.
type DeliveryEndpoint struct {
	ID        string    `json:"id"`
	UserUID   string    `json:"user_uid"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DummyEndpoint используется для приёма данных регистрации из JSON-запроса.
// Формат совпадает с PushSubscription.toJSON() в браузере.
type DummyEndpoint struct {
	Endpoint string            `json:"endpoint" validate:"required,url,max=2048" example:"https://fcm.googleapis.com/fcm/send/abc"`
	Keys     DummyEndpointKeys `json:"keys"`
}

// DummyEndpointKeys ключи шифрования push-подписки.
type DummyEndpointKeys struct {
	P256dh string `json:"p256dh" validate:"required,max=512"`
	Auth   string `json:"auth" validate:"required,max=512"`
}
