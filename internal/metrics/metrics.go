// Package metrics содержит метрики Prometheus планировщика и отправителя.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы обработки задания.
const (
	OutcomeDelivered = "delivered"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
	OutcomeQueued    = "queued"
)

// Metrics счётчики и гистограммы рассылки. Нулевой указатель допустим:
// все методы в этом случае ничего не делают.
type Metrics struct {
	tickDuration  prometheus.Histogram
	tickTimeouts  prometheus.Counter
	usersScanned  prometheus.Counter
	jobs          *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	markersPurged prometheus.Counter
}

// New регистрирует метрики в registerer; nil означает DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminders_tick_duration_seconds",
			Help:    "Duration of a dispatch tick.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		tickTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_tick_timeouts_total",
			Help: "Ticks that hit the overall deadline.",
		}),
		usersScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_users_scanned_total",
			Help: "Users evaluated by the dispatcher.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_jobs_total",
			Help: "Dispatch jobs by category and outcome.",
		}, []string{"category", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_push_deliveries_total",
			Help: "Push sends by result.",
		}, []string{"result"}),
		markersPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_markers_purged_total",
			Help: "Dispatch markers removed by retention.",
		}),
	}

	registerer.MustRegister(
		m.tickDuration,
		m.tickTimeouts,
		m.usersScanned,
		m.jobs,
		m.deliveries,
		m.markersPurged,
	)
	return m
}

// ObserveTick фиксирует длительность тика и число просмотренных пользователей.
func (m *Metrics) ObserveTick(d time.Duration, users int, timedOut bool) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
	m.usersScanned.Add(float64(users))
	if timedOut {
		m.tickTimeouts.Inc()
	}
}

// Job фиксирует исход обработки задания.
func (m *Metrics) Job(category, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(category, outcome).Inc()
}

// Deliveries фиксирует результат рассылки по эндпоинтам.
func (m *Metrics) Deliveries(sent, pruned, failed int) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues("sent").Add(float64(sent))
	m.deliveries.WithLabelValues("pruned").Add(float64(pruned))
	m.deliveries.WithLabelValues("failed").Add(float64(failed))
}

// MarkersPurged фиксирует количество удалённых маркеров.
func (m *Metrics) MarkersPurged(n int64) {
	if m == nil {
		return
	}
	m.markersPurged.Add(float64(n))
}
