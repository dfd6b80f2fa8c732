package processor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tmellor/forge/pkg/response"
)

// Metrics is the Prometheus-backed observability surface for a
// Processor's invocations: one CounterVec and one HistogramVec for
// latency, both labeled by command path and outcome ("success" or
// "failure"). Passing one
// into Config is opt-in; a nil *Metrics is never touched.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the processor's metrics against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests, multiple
// Processors in one process with distinct exporters) or
// prometheus.DefaultRegisterer wrapped via promauto.With for the global
// default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		invocations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_command_invocations_total",
				Help: "Total command invocations by command path and outcome",
			},
			[]string{"command_path", "outcome"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "forge_command_invocation_duration_milliseconds",
				Help: "Invocation duration in milliseconds by command path and outcome",
				Buckets: []float64{
					1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000,
				},
			},
			[]string{"command_path", "outcome"},
		),
	}
}

// startInvocation begins timing one invocation and returns a function to
// be deferred, which records the outcome once resp is finalized.
func (m *Metrics) startInvocation(commandPath string) func(resp *response.Response) {
	start := time.Now()
	return func(resp *response.Response) {
		snap := resp.Finalize()
		outcome := "success"
		if !snap.Success {
			outcome = "failure"
		}
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0
		m.invocations.WithLabelValues(commandPath, outcome).Inc()
		m.duration.WithLabelValues(commandPath, outcome).Observe(elapsedMs)
	}
}
