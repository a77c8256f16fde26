package main

import (
	"github.com/caarlos0/georitm-bridge/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var entityStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "georitm",
	Subsystem:   "entity",
	Name:        "on",
	Help:        "Whether the entity is on",
	ConstLabels: map[string]string{},
}, []string{"entity"})

var entityAvailableGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "georitm",
	Subsystem:   "entity",
	Name:        "available",
	Help:        "Whether the entity is available",
	ConstLabels: map[string]string{},
}, []string{"entity"})

var pollDurationGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace:   "georitm",
	Subsystem:   "poll",
	Name:        "duration_seconds",
	Help:        "Duration of the last refresh",
	ConstLabels: map[string]string{},
})

var pollErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace:   "georitm",
	Subsystem:   "poll",
	Name:        "errors_total",
	Help:        "Refreshes that failed for at least one device",
	ConstLabels: map[string]string{},
})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "georitm",
	Subsystem:   "command",
	Name:        "total",
	Help:        "Arm and disarm commands",
	ConstLabels: map[string]string{},
}, []string{"command", "result"})

var requestCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace:   "georitm",
	Subsystem:   "client",
	Name:        "requests_total",
	Help:        "",
	ConstLabels: map[string]string{},
})

var requestErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace:   "georitm",
	Subsystem:   "client",
	Name:        "request_errors_total",
	Help:        "",
	ConstLabels: map[string]string{},
})

func observe(st state.State) {
	entityStateGauge.WithLabelValues(st.EntityID).Set(boolAs[float64](st.IsOn()))
	entityAvailableGauge.WithLabelValues(st.EntityID).Set(boolAs[float64](st.Available()))
}

func boolAs[T int | float64](b bool) T {
	if b {
		return 1
	}
	return 0
}
