// Package telemetry owns the Prometheus collectors for HTTP traffic, progression events and
// host resource samples.
package telemetry

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "levelup"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	XPAwarded       prometheus.Counter
	LevelUps        prometheus.Counter
	QuestsCompleted prometheus.Counter
	SessionsEnded   prometheus.Counter
	StudyHours      prometheus.Counter
	TasksCompleted  prometheus.Counter
	HostResources   *prometheus.GaugeVec
	DBConnPoolStats *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		XPAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "Experience points granted to players",
		}),
		LevelUps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Levels gained by players",
		}),
		QuestsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quests_completed_total",
			Help:      "Quests moved to the completed state",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "study_sessions_ended_total",
			Help:      "Study sessions ended or logged",
		}),
		StudyHours: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "study_hours_total",
			Help:      "Hours recorded on study sessions",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks marked done",
		}),
		HostResources: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "host_resource",
				Help:      "Latest process and host resource sample",
			},
			[]string{"resource"},
		),
		DBConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAward(amount, levelsGained int) {
	if m == nil {
		return
	}
	if amount > 0 {
		m.XPAwarded.Add(float64(amount))
	}
	if levelsGained > 0 {
		m.LevelUps.Add(float64(levelsGained))
	}
}

func (m *Metrics) QuestCompleted() {
	if m == nil {
		return
	}
	m.QuestsCompleted.Inc()
}

func (m *Metrics) SessionEnded(hours float64) {
	if m == nil {
		return
	}
	m.SessionsEnded.Inc()
	if hours > 0 {
		m.StudyHours.Add(hours)
	}
}

func (m *Metrics) TaskCompleted() {
	if m == nil {
		return
	}
	m.TasksCompleted.Inc()
}

// RecordSample publishes a host sample as gauges.
func (m *Metrics) RecordSample(sample ProcessSample) {
	if m == nil {
		return
	}
	m.HostResources.WithLabelValues("process_rss_bytes").Set(float64(sample.ProcessRSSBytes))
	m.HostResources.WithLabelValues("process_cpu_load").Set(sample.ProcessCPULoad)
	m.HostResources.WithLabelValues("system_cpu_load").Set(sample.SystemCPULoad)
	m.HostResources.WithLabelValues("system_memory_total_bytes").Set(float64(sample.SystemMemoryTotal))
	m.HostResources.WithLabelValues("system_memory_used_bytes").Set(float64(sample.SystemMemoryUsed))
	m.HostResources.WithLabelValues("disk_total_bytes").Set(float64(sample.DiskTotalBytes))
	m.HostResources.WithLabelValues("disk_used_bytes").Set(float64(sample.DiskUsedBytes))
}

// RecordDBPoolStats records database connection pool statistics.
func (m *Metrics) RecordDBPoolStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(stats.WaitDuration.Milliseconds()))
}
