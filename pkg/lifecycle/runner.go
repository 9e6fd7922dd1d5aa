package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/inspect"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-statemachine/pkg/lifecycle"

// StateChangeHandler is called with the previous and new runner state on
// every lifecycle transition.
//
// Handlers run synchronously under the runner's state mutex. They must not
// block or call lifecycle methods on the same runner. A panicking handler
// is recovered and logged; the state change still happens.
type StateChangeHandler func(old, new State)

// Hook runs host-specific work during [Runner.Start] or [Runner.Stop], for
// example checking that a dependency is reachable. Hooks run outside the
// state mutex but must not call Start or Stop on the same runner.
type Hook func(ctx context.Context) error

// Info is a point-in-time view of a runner and the machine it hosts. It is
// safe to serialize.
type Info struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State State  `json:"state"`

	// StartedAt is when the runner entered StateRunning. Nil unless the
	// runner is running or paused.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// Uptime is the time since StartedAt.
	Uptime time.Duration `json:"uptime,omitempty"`

	// Machine is the hosted machine's snapshot.
	Machine statemachine.Snapshot `json:"machine"`
}

// Runner hosts a [statemachine.Machine]: it registers the configured
// states, starts the initial one, delivers ticks and tears everything
// down on stop. Create one with [Builder].
//
// Runner's lifecycle methods and [Runner.Tick] are safe for concurrent use.
type Runner[O any] struct {
	machine   *statemachine.Machine[O]
	catalog   *statemachine.Catalog[O]
	cfg       Config
	publisher inspect.Publisher

	tracer trace.Tracer
	logger *slog.Logger

	onStart       Hook
	onStop        Hook
	stateHandlers []StateChangeHandler

	// lifeMu serializes Start and Stop.
	lifeMu sync.Mutex

	mu        sync.RWMutex
	state     State
	startedAt *time.Time
	stopLoop  context.CancelFunc
	loopDone  chan struct{}

	// tickMu serializes ticks with teardown.
	tickMu sync.Mutex
}

// Machine returns the hosted machine.
func (r *Runner[O]) Machine() *statemachine.Machine[O] {
	return r.machine
}

// Config returns the runner's configuration.
func (r *Runner[O]) Config() Config {
	cfg := r.cfg
	cfg.States = append([]string(nil), r.cfg.States...)
	return cfg
}

// State returns the runner's lifecycle state.
func (r *Runner[O]) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Info returns a snapshot of the runner and its machine.
func (r *Runner[O]) Info() Info {
	r.mu.RLock()
	info := Info{
		ID:    r.machine.ID(),
		Name:  r.machine.Name(),
		State: r.state,
	}
	if r.startedAt != nil && (r.state == StateRunning || r.state == StatePaused) {
		t := *r.startedAt
		info.StartedAt = &t
		info.Uptime = time.Since(t)
	}
	r.mu.RUnlock()

	info.Machine = r.machine.Snapshot()
	return info
}

// Health returns nil if the runner is running with an active state. It
// returns a [sserr.CodeUnavailable] error when the runner is in any other
// state, when its machine is stranded, or when a transition failed part way
// and the machine no longer receives ticks.
func (r *Runner[O]) Health(ctx context.Context) error {
	if state := r.State(); state != StateRunning {
		return sserr.Newf(sserr.CodeUnavailable,
			"lifecycle: runner is not running, current state is %q", state)
	}
	if r.machine.Stranded() {
		return sserr.New(sserr.CodeUnavailable,
			"lifecycle: machine is stranded with no active state")
	}
	if !r.machine.Ready() {
		return sserr.New(sserr.CodeUnavailable,
			"lifecycle: machine is not ready, a transition did not complete")
	}
	return nil
}

// SetState moves the runner to state after checking [ValidTransition] and
// notifies every [StateChangeHandler]. It returns a [sserr.CodeConflict]
// error for a disallowed transition.
func (r *Runner[O]) SetState(state State) error {
	return r.changeState(state)
}

// changeState is SetState restricted to the given source states, if any.
func (r *Runner[O]) changeState(state State, from ...State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.state
	if len(from) > 0 && !slices.Contains(from, old) {
		return sserr.Conflictf("lifecycle: cannot move to %q from state %q", state, old)
	}
	if !ValidTransition(old, state) {
		return sserr.Conflictf("lifecycle: invalid state transition from %q to %q", old, state)
	}
	r.state = state

	for _, h := range r.stateHandlers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("lifecycle: state change handler panicked",
						"panic", rec,
						"machine_id", r.machine.ID(),
						"old_state", string(old),
						"new_state", string(state),
					)
				}
			}()
			h(old, state)
		}()
	}
	return nil
}

// Start resolves the configured state names, creates and registers every
// enabled state, starts the initial state and, if [Config.TickInterval] is
// positive, starts delivering ticks.
//
// Start may be called from [StateUnknown], [StateStopped] or
// [StateFailed]; otherwise it returns a [sserr.CodeConflict] error. If any
// step fails the machine is torn down, the runner moves to [StateFailed]
// and the error is returned with its original code.
func (r *Runner[O]) Start(ctx context.Context) (err error) {
	ctx, span := r.startSpan(ctx, "lifecycle.Start")
	defer func() { finishSpan(span, err) }()

	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: start canceled before execution")
	}
	if err := r.SetState(StateStarting); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "lifecycle: starting runner",
		"machine_id", r.machine.ID(),
		"machine", r.machine.Name(),
		"states", r.cfg.States,
		"initial", r.cfg.Initial,
	)

	if err := r.boot(ctx); err != nil {
		r.logger.ErrorContext(ctx, "lifecycle: start failed",
			"machine_id", r.machine.ID(),
			"error", err,
		)
		_ = r.SetState(StateFailed)
		return err
	}

	if err := r.SetState(StateRunning); err != nil {
		err = r.abandon(ctx, err)
		r.logger.ErrorContext(ctx, "lifecycle: start failed",
			"machine_id", r.machine.ID(),
			"error", err,
		)
		_ = r.SetState(StateFailed)
		return err
	}
	now := time.Now().UTC()
	r.mu.Lock()
	r.startedAt = &now
	r.mu.Unlock()

	r.publish(ctx)
	if r.cfg.TickInterval > 0 {
		r.startLoop(ctx)
	}

	snap := r.machine.Snapshot()
	r.logger.InfoContext(ctx, "lifecycle: runner started",
		"machine_id", r.machine.ID(),
		"state", snap.State.String(),
		"tick_interval", r.cfg.TickInterval,
	)
	return nil
}

// boot runs the start hook and brings the machine up. On failure after
// registration the machine is torn down.
func (r *Runner[O]) boot(ctx context.Context) error {
	if r.onStart != nil {
		if err := r.onStart(ctx); err != nil {
			return sserr.Wrap(err, sserr.CodeInternal, "lifecycle: start hook failed")
		}
	}

	ids, err := resolveAll(r.catalog, r.cfg.States)
	if err != nil {
		return err
	}
	initial, err := ResolveIdentity(r.catalog, r.cfg.Initial)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, initial) {
		return sserr.Validationf("lifecycle: initial state %q is not one of the enabled states", initial)
	}

	states := make([]statemachine.State[O], 0, len(ids))
	for _, id := range ids {
		s, err := r.catalog.New(id)
		if err != nil {
			return err
		}
		states = append(states, s)
	}

	if err := r.machine.RegisterMany(ctx, states); err != nil {
		return r.abandon(ctx, err)
	}
	if err := r.machine.Start(ctx, initial); err != nil {
		return r.abandon(ctx, err)
	}
	return nil
}

// abandon tears the machine down after a failed start and joins any
// teardown error to cause.
func (r *Runner[O]) abandon(ctx context.Context, cause error) error {
	if err := r.machine.Teardown(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Tick advances the hosted machine by delta and publishes its snapshot. It
// is a no-op unless the runner is running. The ticker calls Tick; hosts
// with a zero [Config.TickInterval] call it themselves.
//
// Errors from the active state's Update hook are returned. Publish
// failures are logged.
func (r *Runner[O]) Tick(ctx context.Context, delta time.Duration) error {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	if r.State() != StateRunning {
		return nil
	}
	err := r.machine.Tick(ctx, delta)
	r.publish(ctx)
	return err
}

// Pause stops tick delivery. The active state stays active and its elapsed
// time freezes. Pause may only be called from [StateRunning].
func (r *Runner[O]) Pause(ctx context.Context) (err error) {
	ctx, span := r.startSpan(ctx, "lifecycle.Pause")
	defer func() { finishSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: pause canceled before execution")
	}
	if err := r.SetState(StatePaused); err != nil {
		return err
	}

	r.publish(ctx)
	r.logger.InfoContext(ctx, "lifecycle: runner paused", "machine_id", r.machine.ID())
	return nil
}

// Resume restarts tick delivery. It may only be called from [StatePaused].
func (r *Runner[O]) Resume(ctx context.Context) (err error) {
	ctx, span := r.startSpan(ctx, "lifecycle.Resume")
	defer func() { finishSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: resume canceled before execution")
	}
	if err := r.changeState(StateRunning, StatePaused); err != nil {
		return err
	}

	r.publish(ctx)
	r.logger.InfoContext(ctx, "lifecycle: runner resumed", "machine_id", r.machine.ID())
	return nil
}

// Stop halts tick delivery, tears the machine down so every registered
// state is ended and destroyed, and clears the published snapshot.
//
// Stop waits for an in-flight [Runner.Start] to finish before it acts. It
// is a no-op in a terminal state and returns a [sserr.CodeConflict] error
// for a runner that was never started. If teardown or the stop hook fails
// the runner moves to [StateFailed] and the joined errors are returned.
func (r *Runner[O]) Stop(ctx context.Context) (err error) {
	ctx, span := r.startSpan(ctx, "lifecycle.Stop")
	defer func() { finishSpan(span, err) }()

	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	if r.State().IsTerminal() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: stop canceled before execution")
	}
	if err := r.SetState(StateStopping); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "lifecycle: stopping runner", "machine_id", r.machine.ID())

	r.haltLoop()

	r.tickMu.Lock()
	stopErr := r.machine.Teardown(ctx)
	r.tickMu.Unlock()

	if err := r.publisher.Clear(ctx, r.machine.ID()); err != nil {
		r.logger.WarnContext(ctx, "lifecycle: failed to clear published snapshot",
			"machine_id", r.machine.ID(),
			"error", err,
		)
	}
	if r.onStop != nil {
		if err := r.onStop(ctx); err != nil {
			stopErr = errors.Join(stopErr, sserr.Wrap(err, sserr.CodeInternal, "lifecycle: stop hook failed"))
		}
	}

	r.mu.Lock()
	r.startedAt = nil
	r.mu.Unlock()

	if stopErr != nil {
		r.logger.ErrorContext(ctx, "lifecycle: stop failed",
			"machine_id", r.machine.ID(),
			"error", stopErr,
		)
		_ = r.SetState(StateFailed)
		return stopErr
	}
	if err := r.SetState(StateStopped); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "lifecycle: runner stopped", "machine_id", r.machine.ID())
	return nil
}

// startLoop delivers ticks every TickInterval until haltLoop. The loop
// outlives ctx's cancellation but keeps its values.
func (r *Runner[O]) startLoop(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	r.mu.Lock()
	r.stopLoop = cancel
	r.loopDone = done
	r.mu.Unlock()

	go r.loop(loopCtx, r.cfg.TickInterval, done)
}

func (r *Runner[O]) loop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			if err := r.Tick(ctx, delta); err != nil {
				r.logger.ErrorContext(ctx, "lifecycle: tick failed",
					"machine_id", r.machine.ID(),
					"error", err,
				)
			}
		}
	}
}

// haltLoop stops the tick loop, if any, and waits for it to exit.
func (r *Runner[O]) haltLoop() {
	r.mu.Lock()
	cancel, done := r.stopLoop, r.loopDone
	r.stopLoop, r.loopDone = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Runner[O]) publish(ctx context.Context) {
	if err := r.publisher.Publish(ctx, r.machine.Snapshot()); err != nil {
		r.logger.WarnContext(ctx, "lifecycle: failed to publish snapshot",
			"machine_id", r.machine.ID(),
			"error", err,
		)
	}
}

func (r *Runner[O]) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("statemachine.id", r.machine.ID()),
			attribute.String("statemachine.name", r.machine.Name()),
		),
	)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
