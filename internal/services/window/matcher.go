package window

import (
	"fmt"
	"slices"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// Matcher решает, какие категории должны сработать в заданную минуту.
// Решение «когда» отделено от выбора текста: текст выбирает Catalog.Pick.
type Matcher struct {
	schedule Schedule
	catalog  *Catalog
}

// NewMatcher проверяет таблицу и создает Matcher.
func NewMatcher(schedule Schedule, catalog *Catalog) (*Matcher, error) {
	const op = "window.NewMatcher"
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Matcher{schedule: schedule, catalog: catalog}, nil
}

// DueCategories возвращает категории, которые должны сработать в minuteOfDay.
// Категория срабатывает, если пользователь её включил, минута совпадает
// с одной из минут таблицы цели и пул текстов не пуст.
func (m *Matcher) DueCategories(goal models.Goal, prefs models.NotificationPreference, minuteOfDay int) []models.Category {
	table, ok := m.schedule[goal]
	if !ok {
		return nil
	}

	var due []models.Category
	for _, c := range models.ReminderCategories() {
		if !prefs.Enabled(c) {
			continue
		}
		if !slices.Contains(table[c], minuteOfDay) {
			continue
		}
		if m.catalog != nil && !m.catalog.Has(c) {
			continue
		}
		due = append(due, c)
	}
	return due
}

// Compose выбирает текст уведомления для категории.
func (m *Matcher) Compose(category models.Category) (models.Payload, bool) {
	if m.catalog == nil {
		return models.Payload{}, false
	}
	return m.catalog.Pick(category)
}
