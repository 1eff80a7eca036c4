package models

// Goal цель пользователя, по которой выбирается расписание напоминаний.
type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// Goals возвращает все поддерживаемые цели.
func Goals() []Goal {
	return []Goal{GoalLose, GoalMaintain, GoalGain}
}

// Category категория уведомления.
type Category string

const (
	CategoryHydration      Category = "hydration"
	CategoryMeals          Category = "meals"
	CategoryWorkouts       Category = "workouts"
	CategoryMotivation     Category = "motivation"
	CategoryWeightLossTips Category = "weight_loss_tips"
	CategoryMuscleGainTips Category = "muscle_gain_tips"
	// CategoryExpiry используется только предупреждениями об окончании подписки.
	CategoryExpiry Category = "expiry"
)

// ReminderCategories возвращает категории, на которые пользователь может подписаться,
// в фиксированном порядке.
func ReminderCategories() []Category {
	return []Category{
		CategoryHydration,
		CategoryMeals,
		CategoryWorkouts,
		CategoryMotivation,
		CategoryWeightLossTips,
		CategoryMuscleGainTips,
	}
}

// NotificationPreference настройки уведомлений пользователя.
// Меняются только самим пользователем через профиль.
type NotificationPreference struct {
	Hydration      bool `json:"hydration"`
	Meals          bool `json:"meals"`
	Workouts       bool `json:"workouts"`
	Motivation     bool `json:"motivation"`
	WeightLossTips bool `json:"weight_loss_tips"`
	MuscleGainTips bool `json:"muscle_gain_tips"`
}

// Enabled сообщает, включена ли категория.
func (p NotificationPreference) Enabled(c Category) bool {
	switch c {
	case CategoryHydration:
		return p.Hydration
	case CategoryMeals:
		return p.Meals
	case CategoryWorkouts:
		return p.Workouts
	case CategoryMotivation:
		return p.Motivation
	case CategoryWeightLossTips:
		return p.WeightLossTips
	case CategoryMuscleGainTips:
		return p.MuscleGainTips
	}
	return false
}

// Any сообщает, включена ли хотя бы одна категория.
func (p NotificationPreference) Any() bool {
	for _, c := range ReminderCategories() {
		if p.Enabled(c) {
			return true
		}
	}
	return false
}

// UserSchedule данные пользователя, нужные планировщику за один тик:
// цель, часовой пояс и настройки уведомлений.
type UserSchedule struct {
	UserUID     string
	Goal        Goal
	Timezone    string // IANA, при пустом значении используется часовой пояс по умолчанию
	Preferences NotificationPreference
}
