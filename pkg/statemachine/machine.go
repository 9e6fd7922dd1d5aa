package statemachine

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"

// Machine runs a fixed set of registered states against a shared owner,
// with exactly one state active at a time. Create one with [NewBuilder] or
// [New].
//
// # Driving a Machine
//
// A single logical owner (typically [lifecycle.Runner] or a game loop) drives
// every operation: Register/RegisterMany, Start, Tick, Transition and
// Teardown. The machine assumes these are never called concurrently and
// fully awaits each lifecycle phase before the next begins, so at most one
// hook is in flight at a time. Read-only accessors ([Machine.Current],
// [Machine.Snapshot], ...) and [Machine.RequestChange] are safe to call from
// other goroutines.
//
// # Ordering Guarantees
//
//   - Initialize of a state completes before that state can be started.
//   - End of the outgoing state, including scope cancellation, awaiting of
//     scope work and resource release, completes before Start of the
//     incoming state begins.
//   - Destroy of every state runs after its final End.
//
// # Failures
//
// Hook errors are never swallowed or retried. They are returned as
// [*sserr.Error] values with code [sserr.CodeLifecycleHook] (or
// [sserr.CodeLifecycleHookPanic]) carrying the phase and state identity;
// see [FailedPhase]. A failed operation leaves the active state and the
// ready flag as they were immediately before the failing phase began.
type Machine[O any] struct {
	// Immutable fields, set at construction.
	id       string
	name     string
	owner    O
	tracer   trace.Tracer
	logger   *slog.Logger
	observer Observer

	// Mutable fields, protected by mu. Hooks never run under mu.
	mu         sync.RWMutex
	states     map[Identity]*slot[O]
	order      []Identity
	current    *slot[O]
	ready      bool
	stranded   bool
	activation uint64
	pending    *changeRequest
}

// slot is the engine-side bookkeeping for one registered state.
type slot[O any] struct {
	id         Identity
	state      State[O]
	elapsed    time.Duration
	scope      *Scope
	started    bool
	activation uint64
}

// changeRequest is a transition requested from inside an activation.
type changeRequest struct {
	target     Identity
	activation uint64
}

// ID returns the unique identifier of the machine instance.
func (m *Machine[O]) ID() string {
	return m.id
}

// Name returns the human-readable machine name.
func (m *Machine[O]) Name() string {
	return m.name
}

// Owner returns the owner bound at construction. It never changes.
func (m *Machine[O]) Owner() O {
	return m.owner
}

// Ready reports whether the machine delivers ticks to its active state.
func (m *Machine[O]) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Stranded reports whether the most recent transition ended the previous
// state but could not start its target. A stranded machine has no active
// state; call [Machine.Start] or [Machine.Transition] to recover.
func (m *Machine[O]) Stranded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stranded
}

// Has reports whether a state with the given identity is registered.
func (m *Machine[O]) Has(id Identity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[id]
	return ok
}

// Registered returns the registered identities in registration order.
func (m *Machine[O]) Registered() []Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Elapsed returns the active time accumulated by the state registered
// under id since its most recent start. After the state ends the value is
// frozen until its next start.
func (m *Machine[O]) Elapsed(id Identity) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return 0, false
	}
	return s.elapsed, true
}

// Current returns a snapshot of the machine and reports whether a state is
// active.
func (m *Machine[O]) Current() (Snapshot, bool) {
	snap := m.Snapshot()
	return snap, snap.Active()
}

// Snapshot returns a point-in-time view of the machine.
func (m *Machine[O]) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		MachineID:  m.id,
		Machine:    m.name,
		Ready:      m.ready,
		Stranded:   m.stranded,
		Activation: m.activation,
		Registered: slices.Clone(m.order),
		TakenAt:    time.Now().UTC(),
	}
	if m.current != nil {
		snap.State = m.current.id
		snap.Elapsed = m.current.elapsed
	}
	if snap.Registered == nil {
		snap.Registered = []Identity{}
	}
	return snap
}

// Register adds state to the registry under its [IdentityOf] and runs its
// Initialize hook. If a state with the same identity is already registered,
// Register is a no-op and Initialize is not invoked again.
//
// If Initialize fails the state is not added; it may be registered again
// later. A nil state returns a [sserr.CodeConfigurationState] error.
func (m *Machine[O]) Register(ctx context.Context, state State[O]) (err error) {
	if isNil(state) {
		return sserr.New(sserr.CodeConfigurationState,
			"statemachine: state must not be nil")
	}
	id := IdentityOf(state)
	if id == "" {
		return sserr.New(sserr.CodeConfigurationState,
			"statemachine: state identity must not be empty")
	}

	ctx, span := m.startSpan(ctx, "Register", id)
	defer func() { finishSpan(span, err) }()

	if m.Has(id) {
		return nil
	}

	if err := m.runPhase(ctx, id, PhaseInitialize, func(ctx context.Context) error {
		return state.Initialize(ctx, m)
	}); err != nil {
		return err
	}

	m.mu.Lock()
	m.states[id] = &slot[O]{id: id, state: state}
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "statemachine: state registered",
		"machine_id", m.id,
		"machine", m.name,
		"state", string(id),
	)
	return nil
}

// RegisterMany registers each state in order. Registrations are
// independent: a failure does not stop later states from being registered.
// If any registration fails, the returned error joins every failure and
// [FailedIdentities] lists the failing identities in order.
func (m *Machine[O]) RegisterMany(ctx context.Context, states []State[O]) error {
	var (
		errs      []error
		failed    []Identity
		hookFails bool
	)
	for _, state := range states {
		if err := m.Register(ctx, state); err != nil {
			errs = append(errs, err)
			var id Identity
			if !isNil(state) {
				id = IdentityOf(state)
			}
			failed = append(failed, id)
			if sserr.IsLifecycleHook(err) {
				hookFails = true
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}

	code := sserr.CodeConfigurationState
	if hookFails {
		code = sserr.CodeLifecycleHook
	}
	return sserr.Wrapf(errors.Join(errs...), code,
		"statemachine: %d of %d states failed to register", len(failed), len(states)).
		WithDetail(detailFailed, failed)
}

// Start makes the state registered under id the first active state of the
// machine. It is the entry point for a machine with no active state,
// including a stranded one.
//
// Errors:
//   - [sserr.CodeUnknownState] if id is not registered; the machine stays
//     without an active state and not ready.
//   - [sserr.CodeConflict] if a state is already active; use
//     [Machine.Transition] instead.
//   - [sserr.CodeLifecycleHook] if the state's Start hook fails; the state
//     does not become active and the machine stays not ready.
func (m *Machine[O]) Start(ctx context.Context, id Identity) (err error) {
	ctx, span := m.startSpan(ctx, "Start", id)
	defer func() { finishSpan(span, err) }()

	m.mu.Lock()
	if m.current != nil {
		active := m.current.id
		m.mu.Unlock()
		return sserr.Conflictf(
			"statemachine: machine %q already has active state %q", m.name, active)
	}
	m.ready = false
	target, ok := m.states[id]
	m.mu.Unlock()

	if !ok {
		return sserr.UnknownStatef("statemachine: state %q is not registered", id)
	}

	if err := m.startSlot(ctx, target); err != nil {
		return err
	}

	m.activate(ctx, target, "")
	return nil
}

// Transition ends the active state and starts the state registered under
// id. The order is strict: the machine stops delivering ticks, the active
// state's End phase runs to completion (hook, scope cancellation, scope
// work, resource release), and only then is the target looked up and
// started. Ticks resume after the target's Start completes.
//
// If the outgoing End fails, the outgoing state remains current and the
// machine stays not ready. If the target is not registered or its Start
// fails after the outgoing state ended, the machine is stranded: no state
// is active and [Machine.Stranded] reports true.
//
// With no active state, Transition simply starts the target.
//
// Transition must not be called from inside a state's hooks; states use
// [Machine.RequestChange] or [Scope.RequestChange].
func (m *Machine[O]) Transition(ctx context.Context, id Identity) (err error) {
	ctx, span := m.startSpan(ctx, "Transition", id)
	defer func() { finishSpan(span, err) }()

	m.mu.Lock()
	m.ready = false
	m.pending = nil
	prev := m.current
	m.mu.Unlock()

	var from Identity
	if prev != nil {
		from = prev.id
		span.SetAttributes(attribute.String("statemachine.from", string(from)))
		if err := m.endSlot(ctx, prev); err != nil {
			return err
		}
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
	}

	m.mu.RLock()
	target, ok := m.states[id]
	m.mu.RUnlock()

	if !ok {
		err := sserr.UnknownStatef("statemachine: state %q is not registered", id)
		if prev != nil {
			m.strand(ctx, from, id, err)
		}
		return err
	}

	if err := m.startSlot(ctx, target); err != nil {
		if prev != nil {
			m.strand(ctx, from, id, err)
		}
		return err
	}

	m.activate(ctx, target, from)
	return nil
}

// RequestChange asks the machine to transition to target. The request is
// tagged with the most recent activation and applied by [Machine.Tick] once
// the active state's Update returns. A request whose activation has ended
// by then is dropped. When several requests arrive before the next tick,
// the last one wins.
//
// RequestChange never blocks and is safe to call from Update, from Start
// (the request then applies on the first tick), and from any goroutine.
func (m *Machine[O]) RequestChange(target Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activation == 0 {
		return
	}
	m.pending = &changeRequest{target: target, activation: m.activation}
}

// requestFrom records a change request issued through an activation's
// Scope. Requests from activations other than the most recent are dropped.
func (m *Machine[O]) requestFrom(target Identity, activation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if activation != m.activation {
		return
	}
	m.pending = &changeRequest{target: target, activation: activation}
}

// Tick delivers delta to the active state. It is a no-op while the machine
// is not ready, has no active state, or the active state has not completed
// its Start; this covers ticks before the first Start, during a transition
// and after Teardown. Negative deltas are treated as zero.
//
// After Update returns, Tick applies a pending change request by calling
// [Machine.Transition] and returns its error.
func (m *Machine[O]) Tick(ctx context.Context, delta time.Duration) error {
	if delta < 0 {
		delta = 0
	}

	m.mu.Lock()
	s := m.current
	if !m.ready || s == nil || !s.started {
		m.mu.Unlock()
		return nil
	}
	s.elapsed += delta
	m.mu.Unlock()

	if err := guard(func() error {
		s.state.Update(m, delta)
		return nil
	}); err != nil {
		herr := hookError(s.id, PhaseUpdate, err)
		m.logger.ErrorContext(ctx, "statemachine: update hook panicked",
			"machine_id", m.id,
			"machine", m.name,
			"state", string(s.id),
			"error", herr,
		)
		return herr
	}

	return m.applyPending(ctx)
}

// applyPending runs the pending change request, if it still belongs to the
// active activation.
func (m *Machine[O]) applyPending(ctx context.Context) error {
	m.mu.Lock()
	req := m.pending
	m.pending = nil
	var live uint64
	if m.current != nil && m.current.started {
		live = m.current.activation
	}
	m.mu.Unlock()

	if req == nil {
		return nil
	}
	if req.activation != live {
		m.logger.WarnContext(ctx, "statemachine: dropped stale change request",
			"machine_id", m.id,
			"machine", m.name,
			"target", string(req.target),
		)
		return nil
	}
	return m.Transition(ctx, req.target)
}

// Teardown ends the active state (if any), destroys every registered state
// in registration order and clears the registry. Teardown is best-effort:
// a failing End or Destroy does not prevent the remaining states from being
// destroyed. All failures are returned together in one
// [sserr.CodeLifecycleHook] error.
//
// Teardown is idempotent; calling it on a torn-down machine invokes no hooks
// and returns nil. Ticks after Teardown are no-ops.
func (m *Machine[O]) Teardown(ctx context.Context) (err error) {
	m.mu.Lock()
	if len(m.states) == 0 && m.current == nil {
		m.ready = false
		m.mu.Unlock()
		return nil
	}
	m.ready = false
	m.pending = nil
	prev := m.current
	order := slices.Clone(m.order)
	slots := m.states
	m.mu.Unlock()

	ctx, span := m.startSpan(ctx, "Teardown", "")
	defer func() { finishSpan(span, err) }()

	var errs []error
	if prev != nil {
		if err := m.endSlot(ctx, prev); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	for _, id := range order {
		s := slots[id]
		if err := m.runPhase(ctx, id, PhaseDestroy, func(ctx context.Context) error {
			return s.state.Destroy(ctx, m)
		}); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	m.states = make(map[Identity]*slot[O])
	m.order = nil
	m.stranded = false
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "statemachine: machine torn down",
		"machine_id", m.id,
		"machine", m.name,
		"destroyed", len(order),
		"errors", len(errs),
	)

	if len(errs) > 0 {
		return sserr.Wrapf(errors.Join(errs...), sserr.CodeLifecycleHook,
			"statemachine: teardown of machine %q completed with %d errors", m.name, len(errs))
	}
	return nil
}

// startSlot runs the engine-side start of s: a fresh scope, elapsed reset,
// the Start hook, then started=true. If the hook fails, the scope is closed
// and s stays not started.
func (m *Machine[O]) startSlot(ctx context.Context, s *slot[O]) error {
	m.mu.Lock()
	m.activation++
	activation := m.activation
	scope := newScope(ctx, func(target Identity) {
		m.requestFrom(target, activation)
	})
	s.scope = scope
	s.elapsed = 0
	s.activation = activation
	m.mu.Unlock()

	err := m.runPhase(ctx, s.id, PhaseStart, func(ctx context.Context) error {
		return s.state.Start(ctx, m, scope)
	})
	if err != nil {
		if cerr := scope.close(); cerr != nil {
			err = errors.Join(err, hookError(s.id, PhaseStart, cerr))
		}
		m.mu.Lock()
		s.scope = nil
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	s.started = true
	m.mu.Unlock()
	return nil
}

// endSlot runs the engine-side end of s: the End hook while the scope is
// live, then scope close (cancel, await work, release), then started=false.
// The scope is closed even if the hook fails. endSlot is a no-op for a
// state that is not started.
func (m *Machine[O]) endSlot(ctx context.Context, s *slot[O]) error {
	m.mu.RLock()
	started, scope := s.started, s.scope
	m.mu.RUnlock()
	if !started {
		return nil
	}

	err := m.runPhase(ctx, s.id, PhaseEnd, func(ctx context.Context) error {
		hookErr := guard(func() error {
			return s.state.End(ctx, m, scope)
		})
		return errors.Join(hookErr, scope.close())
	})

	m.mu.Lock()
	s.started = false
	s.scope = nil
	m.mu.Unlock()

	if err == nil {
		m.logger.InfoContext(ctx, "statemachine: state ended",
			"machine_id", m.id,
			"machine", m.name,
			"state", string(s.id),
			"elapsed", s.elapsed,
		)
	}
	return err
}

// activate records s as the active state and resumes ticks.
func (m *Machine[O]) activate(ctx context.Context, s *slot[O], from Identity) {
	m.mu.Lock()
	m.current = s
	m.ready = true
	m.stranded = false
	m.mu.Unlock()

	m.observer.Transitioned(m.name, from, s.id)
	m.logger.InfoContext(ctx, "statemachine: state started",
		"machine_id", m.id,
		"machine", m.name,
		"state", string(s.id),
		"from", string(from),
	)
}

// strand marks the machine as stranded after a failed transition.
func (m *Machine[O]) strand(ctx context.Context, from, to Identity, err error) {
	m.mu.Lock()
	m.stranded = true
	m.mu.Unlock()

	m.observer.Stranded(m.name, from, to, err)
	m.logger.WarnContext(ctx, "statemachine: machine stranded",
		"machine_id", m.id,
		"machine", m.name,
		"from", string(from),
		"to", string(to),
		"error", err,
	)
}

// startSpan starts an internal span for a public machine operation.
func (m *Machine[O]) startSpan(ctx context.Context, op string, id Identity) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("statemachine.id", m.id),
		attribute.String("statemachine.name", m.name),
	}
	if id != "" {
		attrs = append(attrs, attribute.String("statemachine.state", string(id)))
	}
	return m.tracer.Start(ctx, "statemachine."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// finishSpan records err on the span (if any) and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// isNil reports whether v is nil or an interface holding a nil pointer,
// map, slice, func or chan.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
