// Package metrics exports state machine lifecycle metrics to Prometheus.
//
// [Recorder] implements statemachine.Observer. Attach it when building a
// machine:
//
//	rec, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
//	if err != nil {
//	    return err
//	}
//	m, err := statemachine.NewBuilder[*Player]("player").WithObserver(rec).Build()
//
// Exported series:
//
//	statemachine_phase_duration_seconds{machine,state,phase}   histogram
//	statemachine_hook_failures_total{machine,state,phase}      counter
//	statemachine_transitions_total{machine,from,to}            counter
//	statemachine_stranded_total{machine}                       counter
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

const namespace = "statemachine"

// initialLabel is the from label of a machine's first activation.
const initialLabel = "none"

// Recorder records machine lifecycle events as Prometheus metrics. It is
// safe for concurrent use and may be shared by many machines; series are
// partitioned by the machine label.
type Recorder struct {
	phaseDuration *prometheus.HistogramVec
	hookFailures  *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	stranded      *prometheus.CounterVec
}

var _ statemachine.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder and registers its collectors with reg.
// If the collectors are already registered with reg (for example by a
// second Recorder), the existing collectors are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of state lifecycle phases in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"machine", "state", "phase"},
		),
		hookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hook_failures_total",
				Help:      "Total number of failed state lifecycle hooks",
			},
			[]string{"machine", "state", "phase"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of completed state activations",
			},
			[]string{"machine", "from", "to"},
		),
		stranded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stranded_total",
				Help:      "Total number of transitions that left a machine without an active state",
			},
			[]string{"machine"},
		),
	}

	var err error
	if r.phaseDuration, err = register(reg, r.phaseDuration); err != nil {
		return nil, err
	}
	if r.hookFailures, err = register(reg, r.hookFailures); err != nil {
		return nil, err
	}
	if r.transitions, err = register(reg, r.transitions); err != nil {
		return nil, err
	}
	if r.stranded, err = register(reg, r.stranded); err != nil {
		return nil, err
	}
	return r, nil
}

// register registers c with reg, returning the already registered
// collector of the same type when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, sserr.Wrap(err, sserr.CodeConflictAlreadyExists,
			"metrics: failed to register collector")
	}
	return c, nil
}

// PhaseCompleted observes the phase duration and counts failures.
func (r *Recorder) PhaseCompleted(machine string, state statemachine.Identity, phase statemachine.Phase, d time.Duration, err error) {
	short := state.Short()
	r.phaseDuration.WithLabelValues(machine, short, string(phase)).Observe(d.Seconds())
	if err != nil {
		r.hookFailures.WithLabelValues(machine, short, string(phase)).Inc()
	}
}

// Transitioned counts a completed activation.
func (r *Recorder) Transitioned(machine string, from, to statemachine.Identity) {
	fromLabel := from.Short()
	if fromLabel == "" {
		fromLabel = initialLabel
	}
	r.transitions.WithLabelValues(machine, fromLabel, to.Short()).Inc()
}

// Stranded counts a transition that left the machine without an active
// state.
func (r *Recorder) Stranded(machine string, _, _ statemachine.Identity, _ error) {
	r.stranded.WithLabelValues(machine).Inc()
}

// Forget deletes every series of machine. Call it after the machine is torn
// down so short-lived machines do not accumulate series.
func (r *Recorder) Forget(machine string) {
	labels := prometheus.Labels{"machine": machine}
	r.phaseDuration.DeletePartialMatch(labels)
	r.hookFailures.DeletePartialMatch(labels)
	r.transitions.DeletePartialMatch(labels)
	r.stranded.DeletePartialMatch(labels)
}
