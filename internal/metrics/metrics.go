package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records the service's Prometheus metrics.
type Collector struct {
	recommendAttempts *prometheus.CounterVec
	attemptLatency    prometheus.Histogram
	predictions       *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recommendAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_analysis_recommend_attempts_total",
			Help: "Recommendation backend attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		attemptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_analysis_recommend_attempt_seconds",
			Help:    "Latency of individual recommendation backend attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_analysis_predictions_total",
			Help: "Risk predictions served by label.",
		}, []string{"risk"}),
	}

	reg.MustRegister(c.recommendAttempts, c.attemptLatency, c.predictions)
	return c
}

func (c *Collector) RecordAttempt(model, outcome string, elapsed time.Duration) {
	c.recommendAttempts.WithLabelValues(model, outcome).Inc()
	c.attemptLatency.Observe(elapsed.Seconds())
}

func (c *Collector) RecordPrediction(risk string) {
	c.predictions.WithLabelValues(risk).Inc()
}
