package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Data quality metrics
	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_core_validation_failures_total",
			Help: "Total number of rejected market batches",
		},
		[]string{"symbol"},
	)

	validationQualityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_core_validation_quality_score",
			Help: "Quality score of the most recent market batch",
		},
		[]string{"symbol"},
	)

	// Ensemble metrics
	ensembleDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_core_ensemble_decisions_total",
			Help: "Total number of ensemble decisions by action",
		},
		[]string{"action"},
	)

	ensembleConfidence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_core_ensemble_confidence",
			Help: "Confidence of the most recent ensemble decision",
		},
	)

	// Risk metrics
	riskState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_core_drawdown_state",
			Help: "Drawdown breaker state (0=GREEN, 1=YELLOW, 2=RED)",
		},
	)

	drawdownPct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_core_drawdown_pct",
			Help: "Current daily drawdown percentage",
		},
	)

	sizedFraction = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_core_sized_fraction",
			Help:    "Distribution of sized position fractions",
			Buckets: []float64{0.01, 0.02, 0.05, 0.1, 0.15, 0.2, 0.25},
		},
	)

	// Resilience breaker metrics
	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_core_breaker_transitions_total",
			Help: "Total number of resilience breaker state transitions",
		},
		[]string{"breaker", "to"},
	)

	// Trailing stop metrics
	stopTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_core_stop_triggers_total",
			Help: "Total number of triggered trailing stops",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(validationFailures)
	prometheus.MustRegister(validationQualityScore)
	prometheus.MustRegister(ensembleDecisions)
	prometheus.MustRegister(ensembleConfidence)
	prometheus.MustRegister(riskState)
	prometheus.MustRegister(drawdownPct)
	prometheus.MustRegister(sizedFraction)
	prometheus.MustRegister(breakerTransitions)
	prometheus.MustRegister(stopTriggers)
}

// MetricsHandler serves the Prometheus metrics endpoint.
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordValidation records a batch verdict.
func RecordValidation(symbol string, valid bool, qualityScore float64) {
	if !valid {
		validationFailures.WithLabelValues(symbol).Inc()
	}
	validationQualityScore.WithLabelValues(symbol).Set(qualityScore)
}

// RecordDecision records an ensemble decision.
func RecordDecision(action string, confidence float64) {
	ensembleDecisions.WithLabelValues(action).Inc()
	ensembleConfidence.Set(confidence)
}

// UpdateRiskState updates the drawdown breaker gauges.
func UpdateRiskState(state int, drawdown float64) {
	riskState.Set(float64(state))
	drawdownPct.Set(drawdown)
}

// RecordSizedFraction records a sized position fraction.
func RecordSizedFraction(fraction float64) {
	sizedFraction.Observe(fraction)
}

// RecordBreakerTransition records a resilience breaker transition.
func RecordBreakerTransition(breaker, to string) {
	breakerTransitions.WithLabelValues(breaker, to).Inc()
}

// RecordStopTrigger records a triggered trailing stop.
func RecordStopTrigger(symbol string) {
	stopTriggers.WithLabelValues(symbol).Inc()
}
