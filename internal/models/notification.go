package models

import (
	"fmt"
	"time"
)

// Payload тело push-уведомления, которое получает клиент.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// MarkerKey ключ записи в журнале отправок: (пользователь, категория, слот).
type MarkerKey struct {
	UserUID  string   `json:"user_uid"`
	Category Category `json:"category"`
	SlotID   string   `json:"slot_id"`
}

func (k MarkerKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.UserUID, k.Category, k.SlotID)
}

// Job одно уведомление, которое нужно отправить.
// NotAfter задаёт момент, после которого отправка теряет смысл.
type Job struct {
	Key      MarkerKey `json:"key"`
	Payload  Payload   `json:"payload"`
	NotAfter time.Time `json:"not_after"`
}

// DeliveryReport итог рассылки по всем устройствам пользователя.
type DeliveryReport struct {
	Sent   int `json:"sent"`
	Pruned int `json:"pruned"`
	Failed int `json:"failed"`
}
