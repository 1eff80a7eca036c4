// Package models содержит доменные структуры движка доступа и напоминаний:
// подписку пользователя, настройки уведомлений, push-эндпоинты и задания
// на отправку. Структуры используются в бизнес-логике и в хранилище.
package models

import "time"

// Plan тариф пользователя.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanTierA   Plan = "tier_a"
	PlanTierB   Plan = "tier_b"
	PlanTrainer Plan = "trainer"
)

// Valid сообщает, известен ли тариф.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanTierA, PlanTierB, PlanTrainer:
		return true
	}
	return false
}

// Subscription представляет запись о подписке пользователя.
// Запись создаётся при регистрации и изменяется только процессом одобрения
// оплаты; этот сервис её только читает. Истечение не записывается в базу,
// а вычисляется сравнением PeriodEnd с текущим временем.
type Subscription struct {
	ID          string     `json:"id"`
	UserUID     string     `json:"user_uid"`
	Plan        Plan       `json:"plan"`
	IsActive    bool       `json:"is_active"`
	TrialAnchor time.Time  `json:"trial_anchor"`           // Момент создания аккаунта, не меняется
	PeriodStart *time.Time `json:"period_start,omitempty"` // Начало оплаченного периода
	PeriodEnd   *time.Time `json:"period_end,omitempty"`   // Конец оплаченного периода
}
