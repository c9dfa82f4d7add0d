package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попыток публикации outbox.
const (
	PublishSent      = "sent"
	PublishRetry     = "retry_error"
	PublishFailed    = "failed"
	PublishDLQFailed = "dlq_failed"
)

// OutboxMetrics описывает метрики публикации transactional outbox.
type OutboxMetrics struct {
	publishAttempts *prometheus.CounterVec
	pending         prometheus.Gauge
	oldestAge       prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		publishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: register(registerer, "oms_outbox_pending_records", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		})),
		oldestAge: register(registerer, "oms_outbox_oldest_pending_age_seconds", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		})),
	}
}

// IncPublish увеличивает счётчик попыток с указанным результатом.
func (m *OutboxMetrics) IncPublish(result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер backlog и возраст самой старой записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldest time.Time, now time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestAge.Set(0)
		return
	}
	age := now.Sub(oldest).Seconds()
	if age < 0 {
		age = 0
	}
	m.oldestAge.Set(age)
}
