package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. Each instance owns its registry so
// tests can build servers side by side.
type Metrics struct {
	Registry *prometheus.Registry

	Validations  *prometheus.CounterVec
	UpdateChecks *prometheus.CounterVec
	Downloads    *prometheus.CounterVec
	RateLimited  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macman",
			Name:      "license_validations_total",
			Help:      "License validations by outcome.",
		}, []string{"outcome"}),
		UpdateChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macman",
			Name:      "update_checks_total",
			Help:      "Update checks by whether an update was offered.",
		}, []string{"available"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macman",
			Name:      "update_downloads_total",
			Help:      "Update artifact downloads by version.",
		}, []string{"version"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macman",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}, []string{"scope"}),
	}
	reg.MustRegister(
		m.Validations,
		m.UpdateChecks,
		m.Downloads,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveValidation records one validation. Successful validations are
// labelled "valid", rejections by their error kind.
func (m *Metrics) ObserveValidation(valid bool, errorType string) {
	outcome := "valid"
	if !valid {
		outcome = errorType
	}
	m.Validations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpdateCheck(available bool) {
	label := "false"
	if available {
		label = "true"
	}
	m.UpdateChecks.WithLabelValues(label).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
