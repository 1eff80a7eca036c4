package window

import (
	"math/rand/v2"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
)

// Picker выбирает индекс из [0, n). Выбор не обязан быть воспроизводимым.
type Picker func(n int) int

// Catalog пулы текстов уведомлений по категориям.
type Catalog struct {
	pools map[models.Category][]models.Payload
	pick  Picker
}

// NewCatalog создает каталог. Если pick равен nil, используется math/rand.
func NewCatalog(pools map[models.Category][]models.Payload, pick Picker) *Catalog {
	if pick == nil {
		pick = rand.IntN
	}
	return &Catalog{pools: pools, pick: pick}
}

// Has сообщает, есть ли хотя бы один текст для категории.
func (c *Catalog) Has(category models.Category) bool {
	return len(c.pools[category]) > 0
}

// Pick выбирает текст для категории. Для пустого пула возвращает false без ошибки.
func (c *Catalog) Pick(category models.Category) (models.Payload, bool) {
	pool := c.pools[category]
	if len(pool) == 0 {
		return models.Payload{}, false
	}
	if len(pool) == 1 {
		return pool[0], true
	}
	return pool[c.pick(len(pool))], true
}

// DefaultCatalog тексты уведомлений по умолчанию.
func DefaultCatalog(pick Picker) *Catalog {
	return NewCatalog(map[models.Category][]models.Payload{
		models.CategoryHydration: {
			{Title: "Время пить воду 💧", Body: "Стакан воды сейчас поможет держать водный баланс.", URL: "/water"},
		},
		models.CategoryMeals: {
			{Title: "Пора поесть 🍽", Body: "Не пропускайте приём пищи и отметьте его в дневнике.", URL: "/meals"},
		},
		models.CategoryWorkouts: {
			{Title: "Время тренировки 🏋️", Body: "Ваша тренировка на сегодня ждёт вас.", URL: "/workouts"},
		},
		models.CategoryMotivation: {
			{Title: "Вы справляетесь!", Body: "Маленькие шаги каждый день дают большой результат.", URL: "/"},
			{Title: "Новый день", Body: "Сегодня отличный день, чтобы стать на шаг ближе к цели.", URL: "/"},
			{Title: "Не сдавайтесь", Body: "Дисциплина важнее мотивации. Продолжайте!", URL: "/"},
		},
		models.CategoryWeightLossTips: {
			{Title: "Совет дня", Body: "Начинайте обед с овощей: они дают сытость при малой калорийности.", URL: "/tips"},
			{Title: "Совет дня", Body: "Сон меньше 7 часов повышает аппетит. Ложитесь вовремя.", URL: "/tips"},
			{Title: "Совет дня", Body: "Сладкие напитки легко заменить водой с лимоном.", URL: "/tips"},
		},
		models.CategoryMuscleGainTips: {
			{Title: "Совет дня", Body: "Распределяйте белок равномерно по 4–5 приёмам пищи.", URL: "/tips"},
			{Title: "Совет дня", Body: "Прогрессия нагрузки важнее количества подходов.", URL: "/tips"},
			{Title: "Совет дня", Body: "Небольшой профицит калорий лучше резкого набора.", URL: "/tips"},
		},
	}, pick)
}
