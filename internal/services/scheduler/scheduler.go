// Package scheduler раз в минуту вычисляет, какие напоминания и предупреждения
// об окончании подписки должны быть отправлены, и передаёт задания отправителю.
//
// Между тиками планировщик помнит только дату последнего полного прохода
// предупреждений. Повторную отправку исключает журнал отправок, поэтому тик
// можно запускать из нескольких экземпляров или повторять.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/clock"
	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/sl"
	"github.com/magabrotheeeer/nutrition-reminders/internal/metrics"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/escalation"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/window"
)

// escalationHorizon верхняя граница выборки подписок: старший порог плюс запас.
const escalationHorizon = 4 * 24 * time.Hour

// errEscalationsIncomplete часть предупреждений не удалось передать отправителю.
var errEscalationsIncomplete = errors.New("escalation pass incomplete")

// ScheduleRepository выборка пользователей с включёнными уведомлениями.
type ScheduleRepository interface {
	ListActiveSchedules(ctx context.Context, afterUID string, limit int) ([]*models.UserSchedule, error)
}

// SubscriptionRepository выборка подписок, период которых скоро закончится.
type SubscriptionRepository interface {
	ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
}

// Handoff передаёт задание отправителю.
type Handoff interface {
	Handoff(ctx context.Context, job models.Job) error
}

// Purger удаляет старые маркеры журнала отправок.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Options параметры планировщика.
type Options struct {
	Location        *time.Location // часовой пояс по умолчанию
	Workers         int
	PageSize        int
	TickTimeout     time.Duration
	CheckHour       int
	Retention       time.Duration
	ExpiredLookback time.Duration
	JobTTL          time.Duration
}

// SchedulerService планировщик.
type SchedulerService struct {
	schedules     ScheduleRepository
	subscriptions SubscriptionRepository
	matcher       *window.Matcher
	handoff       Handoff
	purger        Purger
	clock         clock.Clock
	metrics       *metrics.Metrics
	opts          Options
	log           *slog.Logger
	locations     sync.Map

	// escalatedOn дата (в часовом поясе по умолчанию) последнего полного
	// прохода предупреждений
	escMu       sync.Mutex
	escalatedOn string
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(
	schedules ScheduleRepository,
	subscriptions SubscriptionRepository,
	matcher *window.Matcher,
	handoff Handoff,
	purger Purger,
	clk clock.Clock,
	m *metrics.Metrics,
	opts Options,
	log *slog.Logger,
) *SchedulerService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &SchedulerService{
		schedules:     schedules,
		subscriptions: subscriptions,
		matcher:       matcher,
		handoff:       handoff,
		purger:        purger,
		clock:         clk,
		metrics:       m,
		opts:          opts,
		log:           log,
	}
}

// Run выполняет Tick в начале каждой минуты до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) error {
	s.log.Info("scheduler started", slog.String("timezone", s.opts.Location.String()))
	for {
		timer := time.NewTimer(untilNextMinute(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		if err := s.Tick(ctx); err != nil {
			s.log.Error("tick failed", sl.Err(err))
		}
	}
}

// RunOnce выполняет один тик. Используется при запуске по внешнему триггеру.
func (s *SchedulerService) RunOnce(ctx context.Context) error {
	return s.Tick(ctx)
}

func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

// Tick обрабатывает текущую минуту: напоминания всем пользователям с
// включёнными категориями и, в контрольный час, предупреждения об окончании
// подписки и очистку журнала. Ошибка по одному пользователю не прерывает тик.
func (s *SchedulerService) Tick(ctx context.Context) error {
	const op = "scheduler.Tick"
	start := time.Now()
	now := s.clock.Now().Truncate(time.Minute)

	if s.opts.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TickTimeout)
		defer cancel()
	}

	users, err := s.reminders(ctx, now)
	local := now.In(s.opts.Location)
	if err == nil && local.Hour() == s.opts.CheckHour {
		day := local.Format(time.DateOnly)
		if !s.escalatedToday(day) {
			if err = s.escalations(ctx, now); err == nil {
				s.markEscalated(day)
			}
		}
		if local.Minute() == 0 {
			s.purge(ctx, now)
		}
	}

	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	s.metrics.ObserveTick(time.Since(start), users, timedOut)
	if timedOut {
		s.log.Warn("tick deadline exceeded", slog.Time("minute", now))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("tick finished", slog.Time("minute", now), slog.Int("users", users))
	return nil
}

func (s *SchedulerService) reminders(ctx context.Context, now time.Time) (int, error) {
	var (
		after string
		total int
	)
	for {
		page, err := s.schedules.ListActiveSchedules(ctx, after, s.opts.PageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for _, user := range page {
			g.Go(func() error {
				s.remindUser(gctx, user, now)
				return nil
			})
		}
		_ = g.Wait()

		total += len(page)
		if len(page) < s.opts.PageSize {
			return total, nil
		}
		after = page[len(page)-1].UserUID
	}
}

func (s *SchedulerService) remindUser(ctx context.Context, user *models.UserSchedule, now time.Time) {
	local := now.In(s.location(user.Timezone))
	due := s.matcher.DueCategories(user.Goal, user.Preferences, window.MinuteOfDay(local))
	for _, category := range due {
		payload, ok := s.matcher.Compose(category)
		if !ok {
			continue
		}
		job := models.Job{
			Key: models.MarkerKey{
				UserUID:  user.UserUID,
				Category: category,
				SlotID:   window.SlotID(local),
			},
			Payload:  payload,
			NotAfter: s.notAfter(now),
		}
		s.dispatch(ctx, job)
	}
}

func (s *SchedulerService) escalations(ctx context.Context, now time.Time) error {
	subs, err := s.subscriptions.ListExpiringSubscriptions(ctx, now.Add(-s.opts.ExpiredLookback), now.Add(escalationHorizon))
	if err != nil {
		return err
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, sub := range subs {
		for _, e := range escalation.Due(*sub, now) {
			job := models.Job{Key: e.Key, Payload: e.Payload, NotAfter: s.notAfter(now)}
			g.Go(func() error {
				if !s.dispatch(gctx, job) {
					failed.Add(1)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%w: %d of escalation jobs failed", errEscalationsIncomplete, n)
	}
	return nil
}

// escalatedToday сообщает, был ли уже полный проход предупреждений за day.
// Повторный проход в тот же час возможен только после неудачи.
func (s *SchedulerService) escalatedToday(day string) bool {
	s.escMu.Lock()
	defer s.escMu.Unlock()
	return s.escalatedOn == day
}

func (s *SchedulerService) markEscalated(day string) {
	s.escMu.Lock()
	defer s.escMu.Unlock()
	s.escalatedOn = day
}

func (s *SchedulerService) purge(ctx context.Context, now time.Time) {
	if s.purger == nil || s.opts.Retention <= 0 {
		return
	}
	n, err := s.purger.Purge(ctx, now.Add(-s.opts.Retention))
	if err != nil {
		s.log.Error("failed to purge dispatch markers", sl.Err(err))
		return
	}
	s.metrics.MarkersPurged(n)
	s.log.Info("purged dispatch markers", slog.Int64("count", n))
}

func (s *SchedulerService) dispatch(ctx context.Context, job models.Job) bool {
	if err := s.handoff.Handoff(ctx, job); err != nil {
		s.log.Error("failed to hand off job", slog.String("key", job.Key.String()), sl.Err(err))
		return false
	}
	return true
}

func (s *SchedulerService) notAfter(now time.Time) time.Time {
	if s.opts.JobTTL <= 0 {
		return time.Time{}
	}
	return now.Add(s.opts.JobTTL)
}

// location часовой пояс пользователя; пустой или неизвестный заменяется
// часовым поясом по умолчанию.
func (s *SchedulerService) location(tz string) *time.Location {
	if tz == "" {
		return s.opts.Location
	}
	if loc, ok := s.locations.Load(tz); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("unknown user timezone, using default", slog.String("timezone", tz))
		loc = s.opts.Location
	}
	s.locations.Store(tz, loc)
	return loc
}
