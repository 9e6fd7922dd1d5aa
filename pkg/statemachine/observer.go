package statemachine

import "time"

// Phase names a state lifecycle phase. Phases appear in hook error details,
// in log attributes and in [Observer] callbacks.
type Phase string

const (
	// PhaseInitialize is the one-time setup run at registration.
	PhaseInitialize Phase = "initialize"

	// PhaseStart is the activation setup run on every start.
	PhaseStart Phase = "start"

	// PhaseUpdate is the per-tick hook. It is never reported to an
	// [Observer]; it only appears in panic errors.
	PhaseUpdate Phase = "update"

	// PhaseEnd is the deactivation run on every end, including scope
	// release.
	PhaseEnd Phase = "end"

	// PhaseDestroy is the final teardown run once per registered state.
	PhaseDestroy Phase = "destroy"
)

// String returns the phase name.
func (p Phase) String() string {
	return string(p)
}

// Observer receives lifecycle events from a [Machine]. Implementations are
// called synchronously from the goroutine driving the machine and must not
// block or call back into the machine.
//
// The metrics package provides a Prometheus-backed Observer.
type Observer interface {
	// PhaseCompleted is called after every Initialize, Start, End and
	// Destroy phase with the phase duration and its error (nil on success).
	PhaseCompleted(machine string, state Identity, phase Phase, d time.Duration, err error)

	// Transitioned is called after a state became active. from is empty for
	// the first activation.
	Transitioned(machine string, from, to Identity)

	// Stranded is called when a transition ended the outgoing state but the
	// target could not be started, leaving the machine with no active state.
	Stranded(machine string, from, to Identity, err error)
}

// nopObserver is used when no Observer is configured.
type nopObserver struct{}

func (nopObserver) PhaseCompleted(string, Identity, Phase, time.Duration, error) {}
func (nopObserver) Transitioned(string, Identity, Identity)                      {}
func (nopObserver) Stranded(string, Identity, Identity, error)                   {}
