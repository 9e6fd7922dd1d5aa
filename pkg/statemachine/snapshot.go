package statemachine

import "time"

// Snapshot is a point-in-time view of a [Machine] for diagnostics and
// inspection tooling: which state is running and for how long. It is a
// copy and safe to serialize or retain.
type Snapshot struct {
	// MachineID is the unique identifier of the machine instance.
	MachineID string `json:"machine_id"`

	// Machine is the human-readable machine name.
	Machine string `json:"machine"`

	// State is the identity of the active state. Empty if no state is
	// active.
	State Identity `json:"state,omitempty"`

	// Elapsed is the active time of State accumulated from ticks since its
	// most recent start.
	Elapsed time.Duration `json:"elapsed"`

	// Ready reports whether the machine delivers ticks.
	Ready bool `json:"ready"`

	// Stranded reports whether a transition ended the previous state but
	// failed to start its target.
	Stranded bool `json:"stranded"`

	// Activation is the sequence number of the most recent activation.
	Activation uint64 `json:"activation"`

	// Registered lists every registered identity in registration order.
	Registered []Identity `json:"registered"`

	// TakenAt is the time the snapshot was taken.
	TakenAt time.Time `json:"taken_at"`
}

// Active reports whether the snapshot has an active state.
func (s Snapshot) Active() bool {
	return s.State != ""
}
