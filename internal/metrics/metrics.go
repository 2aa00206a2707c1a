// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reqkeeper"

// Metrics — набор счётчиков на собственном реестре.
// Методы безопасны для nil-получателя (метрики отключены).
type Metrics struct {
	Registry *prometheus.Registry

	versionsAppended     *prometheus.CounterVec
	versionConflicts     prometheus.Counter
	notificationsCreated *prometheus.CounterVec
	notificationFailures prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		versionsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_appended_total",
			Help:      "Requirement versions written, by source.",
		}, []string{"source"}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Version index conflicts detected on append.",
		}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications created, by type.",
		}, []string{"type"}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notification fan-outs that failed and were dropped.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.versionsAppended,
		m.versionConflicts,
		m.notificationsCreated,
		m.notificationFailures,
	)
	return m
}

func (m *Metrics) VersionAppended(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "manual"
	}
	m.versionsAppended.WithLabelValues(source).Inc()
}

func (m *Metrics) VersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

func (m *Metrics) NotificationsCreated(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notificationsCreated.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

// Handler отдаёт метрики в текстовом формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
