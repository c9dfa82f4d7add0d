package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label result для операций движка заказов.
const (
	ResultSuccess            = "success"
	ResultNotFound           = "not_found"
	ResultInvalidOperation   = "invalid_operation"
	ResultConcurrentConflict = "conflict"
	ResultError              = "error"
)

// OrderMetrics содержит метрики движка жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчик операций по типу и результату
	operations *prometheus.CounterVec
	// Время выполнения операции, включая повторы
	duration *prometheus.HistogramVec
	// Конфликты версий, после которых единица работы повторялась
	versionConflicts *prometheus.CounterVec
	// Единицы товара, списанные со склада и возвращённые на склад
	stockReserved prometheus.Counter
	stockReleased prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в заданном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_order_operations_total",
			Help: "Total number of order engine operations grouped by operation and result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_order_operation_duration_seconds",
			Help:    "Duration of order engine operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),
		versionConflicts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_order_version_conflicts_total",
			Help: "Total number of optimistic version conflicts that triggered a retry",
		}, []string{"operation"}),
		stockReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_stock_units_reserved_total",
			Help: "Total number of product units subtracted from stock by orders",
		}),
		stockReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_stock_units_released_total",
			Help: "Total number of product units returned to stock by orders",
		}),
	}
}

// ObserveOperation фиксирует результат и длительность операции.
func (m *OrderMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncVersionConflict увеличивает счётчик конфликтов версий.
func (m *OrderMetrics) IncVersionConflict(operation string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(operation).Inc()
}

// RecordStockDelta учитывает изменение стока: delta > 0 означает списание, delta < 0 возврат.
func (m *OrderMetrics) RecordStockDelta(delta int) {
	if m == nil {
		return
	}
	switch {
	case delta > 0:
		m.stockReserved.Add(float64(delta))
	case delta < 0:
		m.stockReleased.Add(float64(-delta))
	}
}
