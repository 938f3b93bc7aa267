// Package observability holds the process-wide prometheus collectors and the
// tracing bootstrap.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_rooms_active",
		Help: "Rooms currently registered",
	})

	roomsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_rooms_stopped_total",
		Help: "Rooms finalized, by trigger",
	}, []string{"trigger"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_phase_duration_seconds",
		Help:    "Wall time of one language model phase, including streaming",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"phase", "status"})

	protocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_protocol_errors_total",
		Help: "Model outputs rejected by the tag or control parsers",
	}, []string{"phase", "kind"})

	streamAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_stream_aborts_total",
		Help: "Streams discarded before commit",
	}, []string{"operation"})

	codeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_code_runs_total",
		Help: "Test executions against the code runner, by result",
	}, []string{"status"})
)

// RoomOpened increments the active room gauge.
func RoomOpened() { activeRooms.Inc() }

// RoomClosed decrements the active room gauge and counts the trigger.
func RoomClosed(trigger string) {
	activeRooms.Dec()
	roomsStopped.WithLabelValues(trigger).Inc()
}

// ObservePhase records how long a phase took.
func ObservePhase(phase, status string, started time.Time) {
	phaseDuration.WithLabelValues(phase, status).Observe(time.Since(started).Seconds())
}

// ProtocolError counts a parser rejection.
func ProtocolError(phase, kind string) {
	protocolErrors.WithLabelValues(phase, kind).Inc()
}

// StreamAborted counts a provisional message that was dropped.
func StreamAborted(operation string) {
	streamAborts.WithLabelValues(operation).Inc()
}

// CodeRun counts one executed test case.
func CodeRun(status string) {
	codeRuns.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
