// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "sweetshop"

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Operations     *prometheus.CounterVec
	StockUnits     *prometheus.CounterVec
	LowStockAlerts prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Inventory operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		StockUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_adjusted_total",
			Help:      "Units removed by purchases or added by restocks.",
		}, []string{"direction"}),
		LowStockAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Purchases that left a sweet at or below the low stock threshold.",
		}),
	}
	reg.MustRegister(m.Operations, m.StockUnits, m.LowStockAlerts)
	return m
}

// ObserveOperation counts one finished operation.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveStock counts units moved in or out of stock.
func (m *Metrics) ObserveStock(delta int) {
	if m == nil || delta == 0 {
		return
	}
	if delta < 0 {
		m.StockUnits.WithLabelValues("out").Add(float64(-delta))
		return
	}
	m.StockUnits.WithLabelValues("in").Add(float64(delta))
}

// ObserveLowStock counts one low stock alert.
func (m *Metrics) ObserveLowStock() {
	if m == nil {
		return
	}
	m.LowStockAlerts.Inc()
}
