package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tutortoise/digit-recognition-service/models"
)

const metricsNamespace = "digits"

type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	predictions *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	total       prometheus.Histogram
}

func NewMetrics(pool *ModelSessionPool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "predictions_total",
			Help:      "Successful predictions by predicted digit.",
		}, []string{"digit"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
		}, []string{"stage"}),
		total: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "End to end prediction latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(m.requests, m.predictions, m.stages, m.total)
	if pool != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "pool_sessions_in_use",
				Help:      "Model sessions currently held by requests.",
			}, func() float64 { return float64(pool.Stats().InUse) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "pool_sessions_live",
				Help:      "Model sessions alive in the pool.",
			}, func() float64 { return float64(pool.Stats().Live) }),
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request. result is nil on failure.
func (m *Metrics) ObserveRequest(outcome string, t *models.ProcessingTimings, result *models.PredictionResult) {
	m.requests.WithLabelValues(outcome).Inc()
	if t != nil {
		for stage, d := range t.Stages() {
			if d > 0 {
				m.stages.WithLabelValues(stage).Observe(d.Seconds())
			}
		}
		m.total.Observe(t.Total.Seconds())
	}
	if result != nil {
		m.predictions.WithLabelValues(strconv.Itoa(result.Digit)).Inc()
	}
}
