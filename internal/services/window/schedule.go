// Package window решает, какие напоминания должны сработать для пользователя
// в текущую минуту, по статическим таблицам времени для каждой цели.
package window

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// MinutesPerDay количество минут в сутках.
const MinutesPerDay = 24 * 60

// ErrInvalidSchedule возвращается, если таблица расписания неполная или некорректная.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule таблица минут срабатывания: цель → категория → упорядоченный список минут суток.
type Schedule map[models.Goal]map[models.Category][]int

// At переводит часы и минуты в минуту суток.
func At(hour, minute int) int {
	return hour*60 + minute
}

// MinuteOfDay возвращает минуту суток для t в его часовом поясе.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// SlotID стабильный идентификатор минутного слота в локальном времени пользователя.
func SlotID(t time.Time) string {
	return t.Format("20060102-1504")
}

// requiredCategories должны быть в таблице каждой цели.
var requiredCategories = []models.Category{
	models.CategoryHydration,
	models.CategoryMeals,
	models.CategoryWorkouts,
	models.CategoryMotivation,
}

// singleShot категории с единственным временем срабатывания.
var singleShot = []models.Category{
	models.CategoryMotivation,
	models.CategoryWeightLossTips,
	models.CategoryMuscleGainTips,
}

// Validate проверяет таблицу. Ошибка здесь фатальна при старте:
// планировщик не должен молча пропускать категории.
func (s Schedule) Validate() error {
	for _, goal := range models.Goals() {
		table, ok := s[goal]
		if !ok {
			return fmt.Errorf("%w: goal %q has no trigger table", ErrInvalidSchedule, goal)
		}
		for _, c := range requiredCategories {
			if len(table[c]) == 0 {
				return fmt.Errorf("%w: goal %q has no triggers for %q", ErrInvalidSchedule, goal, c)
			}
		}
		for c, minutes := range table {
			if slices.Contains(singleShot, c) && len(minutes) != 1 {
				return fmt.Errorf("%w: goal %q category %q must have exactly one trigger, got %d",
					ErrInvalidSchedule, goal, c, len(minutes))
			}
			for _, m := range minutes {
				if m < 0 || m >= MinutesPerDay {
					return fmt.Errorf("%w: goal %q category %q trigger %d out of range", ErrInvalidSchedule, goal, c, m)
				}
			}
		}
	}
	return nil
}

// DefaultSchedule таблицы напоминаний по умолчанию.
func DefaultSchedule() Schedule {
	return Schedule{
		models.GoalLose: {
			models.CategoryHydration:      {At(7, 0), At(10, 0), At(13, 0), At(16, 0), At(19, 0)},
			models.CategoryMeals:          {At(8, 0), At(13, 0), At(18, 30)},
			models.CategoryWorkouts:       {At(7, 0), At(18, 0)},
			models.CategoryMotivation:     {At(9, 0)},
			models.CategoryWeightLossTips: {At(8, 0)},
		},
		models.GoalMaintain: {
			models.CategoryHydration:  {At(8, 0), At(12, 0), At(16, 0), At(20, 0)},
			models.CategoryMeals:      {At(8, 30), At(13, 0), At(19, 0)},
			models.CategoryWorkouts:   {At(18, 0)},
			models.CategoryMotivation: {At(9, 0)},
		},
		models.GoalGain: {
			models.CategoryHydration:      {At(8, 0), At(11, 0), At(14, 0), At(17, 0), At(20, 0)},
			models.CategoryMeals:          {At(7, 30), At(10, 30), At(13, 30), At(16, 30), At(19, 30)},
			models.CategoryWorkouts:       {At(17, 0)},
			models.CategoryMotivation:     {At(9, 0)},
			models.CategoryMuscleGainTips: {At(8, 0)},
		},
	}
}
