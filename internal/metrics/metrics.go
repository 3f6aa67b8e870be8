// Package metrics exposes session and route-authorization counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/schoolhub-client/internal/model"
)

const namespace = "schoolhub_client"

// Recorder implements the session and guard metric hooks.
type Recorder struct {
	transitions *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	status      *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by origin, target and triggering event.",
		}, []string{"from", "to", "event"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Route guard decisions by guard kind and outcome.",
		}, []string{"guard", "outcome"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "status",
			Help:      "1 for the current session status, 0 otherwise.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{r.transitions, r.refreshes, r.decisions, r.status} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	r.setStatus(model.StatusLoading)
	return r, nil
}

func (r *Recorder) Transition(from, to model.Status, event string) {
	r.transitions.WithLabelValues(from.String(), to.String(), event).Inc()
	r.setStatus(to)
}

func (r *Recorder) RefreshOutcome(outcome string) {
	r.refreshes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) GuardDecision(guard, outcome string) {
	r.decisions.WithLabelValues(guard, outcome).Inc()
}

func (r *Recorder) setStatus(current model.Status) {
	for _, s := range []model.Status{model.StatusLoading, model.StatusAuthenticated, model.StatusUnauthenticated} {
		v := 0.0
		if s == current {
			v = 1
		}
		r.status.WithLabelValues(s.String()).Set(v)
	}
}
