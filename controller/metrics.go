package controller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts protocol and sequencing activity. Pass a nil registerer
// to keep the collectors unregistered (tests).
type Metrics struct {
	CommandsSent   prometheus.Counter
	AckTimeouts    prometheus.Counter
	AckParseErrors prometheus.Counter
	BusyRejections prometheus.Counter
	Gestures       *prometheus.CounterVec
	GestureErrors  prometheus.Counter
	StepDuration   prometheus.Histogram
}

// NewMetrics builds the collectors and registers them when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rufus_commands_sent_total",
			Help: "Servo command frames written to the serial link",
		}),
		AckTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rufus_ack_timeouts_total",
			Help: "Commands that were never acknowledged in time",
		}),
		AckParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rufus_ack_parse_errors_total",
			Help: "Malformed acknowledgment lines",
		}),
		BusyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rufus_busy_rejections_total",
			Help: "Motion requests rejected because a sequence was in flight",
		}),
		Gestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rufus_gestures_total",
			Help: "Gesture executions started",
		}, []string{"gesture"}),
		GestureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rufus_gesture_errors_total",
			Help: "Gesture executions that aborted before completion",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rufus_step_duration_seconds",
			Help:    "Time from command write to matching ack",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CommandsSent,
			m.AckTimeouts,
			m.AckParseErrors,
			m.BusyRejections,
			m.Gestures,
			m.GestureErrors,
			m.StepDuration,
		)
	}

	return m
}
