// Package lifecycle hosts a [statemachine.Machine] inside a long-running
// process.
//
// A [Runner] turns host configuration into a running machine: it resolves
// the configured state names against a [statemachine.Catalog], creates and
// registers every enabled state, starts the initial state and then drives
// ticks from a ticker until it is stopped. Stopping tears the machine down
// so every registered state is destroyed.
//
// The runner has its own small lifecycle, separate from the states of the
// machine it hosts:
//
//	Unknown → Starting → Running → Stopping → Stopped
//	                     Running ⇄ Paused
//
// Any non-terminal state may move to Failed, and both terminal states may
// move back to Starting for a restart. While paused no ticks are
// delivered, so the active state's elapsed time freezes.
//
// # Usage
//
//	catalog := statemachine.NewCatalog[*Player]()
//	_ = statemachine.Provide(catalog, func() *Idle { return &Idle{} })
//	_ = statemachine.Provide(catalog, func() *Moving { return &Moving{} })
//
//	runner, err := lifecycle.NewBuilder("player", catalog, cfg).
//	    WithOwner(player).
//	    WithPublisher(publisher).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	if err := runner.Start(ctx); err != nil {
//	    return err
//	}
//	defer runner.Stop(context.Background())
//
// Set [Config.TickInterval] to zero to drive the machine manually with
// [Runner.Tick].
package lifecycle

// State is the lifecycle state of a [Runner]. The zero value is not a
// valid state; runners begin in [StateUnknown].
type State string

const (
	// StateUnknown is the state of a runner that has never been started.
	StateUnknown State = "unknown"

	// StateStarting is set while states are created, registered and the
	// initial state is started.
	StateStarting State = "starting"

	// StateRunning means ticks are delivered to the machine.
	StateRunning State = "running"

	// StatePaused means the machine keeps its active state but receives no
	// ticks.
	StatePaused State = "paused"

	// StateStopping is set while the machine is torn down.
	StateStopping State = "stopping"

	// StateStopped is terminal. A stopped runner may be started again.
	StateStopped State = "stopped"

	// StateFailed is terminal. It is entered when startup or teardown
	// fails; a failed runner may be started again.
	StateFailed State = "failed"
)

// String returns the string form of the state.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a recognized lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateUnknown, StateStarting, StateRunning, StatePaused,
		StateStopping, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is [StateStopped] or [StateFailed].
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// validTransitions is the runner's transition matrix:
//
//	Unknown  → Starting, Failed
//	Starting → Running, Failed
//	Running  → Paused, Stopping, Failed
//	Paused   → Running, Stopping, Failed
//	Stopping → Stopped, Failed
//	Stopped  → Starting
//	Failed   → Starting
var validTransitions = map[State][]State{
	StateUnknown:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateFailed},
	StateRunning:  {StatePaused, StateStopping, StateFailed},
	StatePaused:   {StateRunning, StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateStopped:  {StateStarting},
	StateFailed:   {StateStarting},
}

// ValidTransition reports whether a runner may move from one state to
// another. Same-state transitions are never valid.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
