package statemachine

import (
	"context"
	"time"
)

// State is the lifecycle contract implemented by every concrete behavior
// run by a [Machine]. O is the owner type shared by the machine and all of
// its states.
//
// Hooks are invoked only by the owning machine, never by application code,
// and never concurrently with one another:
//
//	Initialize                      once, at registration
//	Start -> Update* -> End         any number of times (one activation each)
//	Destroy                         once, at teardown, after the final End
//
// Initialize, Start, End and Destroy may block (e.g., on I/O) and should
// honor ctx. Update runs on every tick and must not block; long-running
// work belongs in the activation [Scope] via [Scope.Go].
//
// The engine keeps all per-activation bookkeeping (elapsed time, the scope,
// the started flag) itself; implementations hold only their own domain
// state. Embed [BaseState] to inherit no-op hooks and override only what is
// needed.
type State[O any] interface {
	// Initialize performs one-time setup. It is called exactly once, when
	// the state is registered.
	Initialize(ctx context.Context, m *Machine[O]) error

	// Start performs activation setup. scope is freshly created for this
	// activation and is live until End returns. A non-nil error aborts the
	// activation: the scope is closed and the state never becomes active.
	Start(ctx context.Context, m *Machine[O], scope *Scope) error

	// Update is the per-tick hook. delta is the time elapsed since the
	// previous tick; the engine has already added it to the state's
	// elapsed active time.
	Update(m *Machine[O], delta time.Duration)

	// End performs deactivation. It runs while scope is still live, so
	// resources registered during the activation may be used for final
	// cleanup. The engine closes the scope after End returns, even if End
	// fails.
	End(ctx context.Context, m *Machine[O], scope *Scope) error

	// Destroy performs final teardown. It is called exactly once, after the
	// state's final End.
	Destroy(ctx context.Context, m *Machine[O]) error
}

// BaseState provides no-op implementations of every [State] hook. Embed it
// in concrete states:
//
//	type Idle struct {
//	    statemachine.BaseState[*Player]
//	}
//
//	func (s *Idle) Update(m *statemachine.Machine[*Player], delta time.Duration) {
//	    if m.Owner().Moving() {
//	        m.RequestChange(statemachine.IdentityFor[*Moving]())
//	    }
//	}
type BaseState[O any] struct{}

// Initialize does nothing.
func (BaseState[O]) Initialize(context.Context, *Machine[O]) error { return nil }

// Start does nothing.
func (BaseState[O]) Start(context.Context, *Machine[O], *Scope) error { return nil }

// Update does nothing.
func (BaseState[O]) Update(*Machine[O], time.Duration) {}

// End does nothing.
func (BaseState[O]) End(context.Context, *Machine[O], *Scope) error { return nil }

// Destroy does nothing.
func (BaseState[O]) Destroy(context.Context, *Machine[O]) error { return nil }

// ChangeTo requests a transition to the state whose type is S. It is the
// typed form of [Machine.RequestChange] for use inside state hooks.
//
// Example:
//
//	func (s *Idle) Update(m *statemachine.Machine[*Player], delta time.Duration) {
//	    if delta > 0 && m.Owner().Input() {
//	        statemachine.ChangeTo[*Moving](m)
//	    }
//	}
func ChangeTo[S State[O], O any](m *Machine[O]) {
	m.RequestChange(IdentityFor[S]())
}
