// Package escalation предупреждает об окончании оплаченной подписки
// за 3 дня, за 1 день и в день окончания.
package escalation

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/entitlement"
)

// Thresholds пороги предупреждений в днях до конца периода.
var Thresholds = []int{3, 1, 0}

// Escalation одно предупреждение, готовое к отправке.
type Escalation struct {
	Threshold int
	Key       models.MarkerKey
	Payload   models.Payload
}

// SlotID идентификатор предупреждения в журнале отправок. Новый PeriodEnd
// после продления даёт новые ключи, и пороги снова становятся доступны.
func SlotID(threshold int, periodEnd time.Time) string {
	return fmt.Sprintf("t%d-%d", threshold, periodEnd.Unix())
}

// Due возвращает предупреждения, которые должны сработать на момент now.
// Повторы отсекает журнал отправок по Key, а не эта функция.
func Due(sub models.Subscription, now time.Time) []Escalation {
	if sub.Plan == models.PlanFree || sub.Plan == "" || sub.PeriodEnd == nil {
		return nil
	}

	daysLeft := entitlement.DaysUntil(*sub.PeriodEnd, now)
	for _, threshold := range Thresholds {
		if daysLeft != threshold {
			continue
		}
		// о скором окончании предупреждаем только действующую подписку
		if threshold > 0 && !sub.IsActive {
			return nil
		}
		return []Escalation{{
			Threshold: threshold,
			Key: models.MarkerKey{
				UserUID:  sub.UserUID,
				Category: models.CategoryExpiry,
				SlotID:   SlotID(threshold, *sub.PeriodEnd),
			},
			Payload: message(threshold),
		}}
	}
	return nil
}

func message(threshold int) models.Payload {
	switch threshold {
	case 3:
		return models.Payload{
			Title: "Подписка заканчивается через 3 дня",
			Body:  "Продлите подписку заранее, чтобы не потерять доступ к анализу блюд и планам.",
			URL:   "/subscription",
		}
	case 1:
		return models.Payload{
			Title: "Подписка заканчивается завтра",
			Body:  "Остался последний день доступа. Продлите подписку, чтобы продолжить.",
			URL:   "/subscription",
		}
	default:
		return models.Payload{
			Title: "Подписка закончилась",
			Body:  "Доступ к платным функциям приостановлен. Оформите подписку снова в профиле.",
			URL:   "/subscription",
		}
	}
}
