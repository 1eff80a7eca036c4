// Package entitlement вычисляет текущий уровень доступа пользователя
// по пробному периоду и оплаченному окну подписки.
//
// Resolve единственное место, где сравнивается время с датами подписки.
// Его вызывают API и планировщик уведомлений.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// TrialDays длительность пробного периода в днях.
const TrialDays = 7

const day = 24 * time.Hour

// State состояние доступа пользователя.
type State string

const (
	StateTrial        State = "trial"
	StateTrialExpired State = "trial_expired"
	StateActive       State = "active"
	StateExpired      State = "expired"
)

// Entitlement результат вычисления доступа.
type Entitlement struct {
	Tier          models.Plan `json:"tier"`
	TrialDaysLeft int         `json:"trial_days_left"`
	PaidDaysLeft  int         `json:"paid_days_left"`
	State         State       `json:"state"`
}

// HasAccess сообщает, открыт ли пользователю доступ к функциям.
func (e Entitlement) HasAccess() bool {
	return e.State == StateTrial || e.State == StateActive
}

// Resolve вычисляет доступ по подписке на момент now.
// Функция чистая и тотальная: без ввода-вывода и без ошибок.
//
// Для бесплатного тарифа прошедшие дни считаются с округлением вниз,
// для оплаченного оставшиеся дни считаются с округлением вверх: период,
// заканчивающийся сегодня в 23:59, весь день показывает «1 день».
func Resolve(sub models.Subscription, now time.Time) Entitlement {
	if sub.Plan == models.PlanFree || sub.Plan == "" {
		left := TrialDays - floorDays(now.Sub(sub.TrialAnchor))
		if left < 0 {
			left = 0
		}
		state := StateTrialExpired
		if left > 0 {
			state = StateTrial
		}
		return Entitlement{
			Tier:          models.PlanFree,
			TrialDaysLeft: left,
			State:         state,
		}
	}

	paidLeft := 0
	if sub.PeriodEnd != nil {
		paidLeft = DaysUntil(*sub.PeriodEnd, now)
	}
	if sub.IsActive && paidLeft > 0 {
		return Entitlement{
			Tier:         sub.Plan,
			PaidDaysLeft: paidLeft,
			State:        StateActive,
		}
	}
	// запись устарела: is_active мог остаться true, но доступа нет
	return Entitlement{
		Tier:         models.PlanFree,
		PaidDaysLeft: paidLeft,
		State:        StateExpired,
	}
}

// DaysUntil возвращает количество дней до end с округлением вверх, не меньше нуля.
func DaysUntil(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

func floorDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / day)
}
