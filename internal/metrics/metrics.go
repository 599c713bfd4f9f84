// Package metrics exposes daemon counters in Prometheus format.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Restart triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerAfterSave = "after_save"
)

var (
	regOK atomic.Bool

	clipsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "replaymon",
			Subsystem: "clips",
			Name:      "saved_total",
			Help:      "Clips moved to their final location, by naming mode.",
		}, []string{"mode"},
	)
	saveFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "replaymon",
			Subsystem: "clips",
			Name:      "failures_total",
			Help:      "Aborted saves, by stage.",
		}, []string{"reason"},
	)
	bufferRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "replaymon",
			Subsystem: "buffer",
			Name:      "restarts_total",
			Help:      "Replay buffer restarts handed to the host.",
		}, []string{"trigger"},
	)
	restartDeferrals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "replaymon",
			Subsystem: "buffer",
			Name:      "restart_deferrals_total",
			Help:      "Scheduled restarts postponed because the user was active.",
		},
	)
	historySamples = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "replaymon",
			Subsystem: "history",
			Name:      "samples_total",
			Help:      "Foreground program samples recorded.",
		},
	)
	probeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "replaymon",
			Subsystem: "probe",
			Name:      "failures_total",
			Help:      "Failed probe calls, by probe.",
		}, []string{"probe"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{clipsSaved, saveFailures, bufferRestarts, restartDeferrals, historySamples, probeFailures}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register succeeds.

func IncClipSaved(mode string) {
	if regOK.Load() {
		clipsSaved.WithLabelValues(mode).Inc()
	}
}

func IncSaveFailure(reason string) {
	if regOK.Load() {
		saveFailures.WithLabelValues(reason).Inc()
	}
}

func IncBufferRestart(trigger string) {
	if regOK.Load() {
		bufferRestarts.WithLabelValues(trigger).Inc()
	}
}

func IncRestartDeferral() {
	if regOK.Load() {
		restartDeferrals.Inc()
	}
}

func IncHistorySample() {
	if regOK.Load() {
		historySamples.Inc()
	}
}

func IncProbeFailure(probe string) {
	if regOK.Load() {
		probeFailures.WithLabelValues(probe).Inc()
	}
}
