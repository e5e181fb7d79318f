// Package metrics exposes Prometheus counters for the gateway's voice and
// chat surfaces.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presto"

// Frame directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

var (
	liveSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of currently active voice sessions",
		},
	)

	liveFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_frames_total",
			Help:      "Total audio frames relayed, by direction",
		},
		[]string{"direction"}, // direction: up (client to model), down (model to client)
	)

	liveDroppedFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_dropped_frames_total",
			Help:      "Total client audio frames dropped before the upstream was ready",
		},
	)

	liveInterruptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_interruptions_total",
			Help:      "Total barge-in interruptions of in-flight responses",
		},
	)

	liveReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_reconnects_total",
			Help:      "Total upstream reconnect attempts after an unexpected drop",
		},
	)

	protocolErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total unparseable or invalid messages, by surface",
		},
		[]string{"surface"}, // surface: voice, chat, upstream
	)

	upstreamConnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_connects_total",
			Help:      "Total upstream dial attempts",
		},
		[]string{"provider", "status"}, // status: success, error
	)

	toolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Total tool executions",
		},
		[]string{"tool", "status"}, // status: success, error
	)

	modeSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_switches_total",
			Help:      "Total mode switch attempts",
		},
		[]string{"source", "status"}, // source: voice, chat; status: applied, failed, canceled
	)

	modeGenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mode_generation_duration_seconds",
			Help:      "Duration of dynamic mode generation calls in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	allMetrics = []prometheus.Collector{
		liveSessionsActive,
		liveFramesTotal,
		liveDroppedFramesTotal,
		liveInterruptionsTotal,
		liveReconnectsTotal,
		protocolErrorsTotal,
		upstreamConnectsTotal,
		toolExecutionsTotal,
		modeSwitchesTotal,
		modeGenerationDuration,
	}
)

var (
	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

// Handler returns the /metrics endpoint handler, registering all gateway
// collectors plus Go runtime collectors on first use.
func Handler() http.Handler {
	registerOnce.Do(func() {
		registry.MustRegister(allMetrics...)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// SessionStarted records a voice session becoming active.
func SessionStarted() {
	liveSessionsActive.Inc()
}

// SessionEnded records a voice session ending.
func SessionEnded() {
	liveSessionsActive.Dec()
}

// RecordFrame records one relayed audio frame.
func RecordFrame(direction string) {
	liveFramesTotal.WithLabelValues(direction).Inc()
}

// RecordDroppedFrame records a client frame dropped before upstream readiness.
func RecordDroppedFrame() {
	liveDroppedFramesTotal.Inc()
}

// RecordInterruption records a barge-in.
func RecordInterruption() {
	liveInterruptionsTotal.Inc()
}

// RecordReconnect records an upstream reconnect attempt.
func RecordReconnect() {
	liveReconnectsTotal.Inc()
}

// RecordProtocolError records a dropped unparseable message.
func RecordProtocolError(surface string) {
	protocolErrorsTotal.WithLabelValues(surface).Inc()
}

// RecordUpstreamConnect records a dial attempt outcome.
func RecordUpstreamConnect(provider, status string) {
	upstreamConnectsTotal.WithLabelValues(provider, status).Inc()
}

// RecordToolExecution records a tool execution outcome.
func RecordToolExecution(tool, status string) {
	toolExecutionsTotal.WithLabelValues(tool, status).Inc()
}

// RecordModeSwitch records a mode switch outcome.
func RecordModeSwitch(source, status string) {
	modeSwitchesTotal.WithLabelValues(source, status).Inc()
}

// RecordModeGeneration records a generation call duration.
func RecordModeGeneration(provider string, durationSeconds float64) {
	modeGenerationDuration.WithLabelValues(provider).Observe(durationSeconds)
}
