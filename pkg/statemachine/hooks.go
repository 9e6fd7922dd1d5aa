package statemachine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// Detail keys attached to lifecycle hook errors.
const (
	detailPhase  = "phase"
	detailState  = "state"
	detailFailed = "failed_states"
)

// hookPanic is the cause recorded when a hook panics.
type hookPanic struct {
	value any
	stack []byte
}

func (p *hookPanic) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// guard runs fn and converts a panic into a *hookPanic error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &hookPanic{value: r, stack: debug.Stack()}
		}
	}()
	return fn()
}

// hookError wraps cause as a lifecycle hook error for the given state and
// phase. Panics get [sserr.CodeLifecycleHookPanic]; everything else
// [sserr.CodeLifecycleHook].
func hookError(id Identity, phase Phase, cause error) *sserr.Error {
	if cause == nil {
		return nil
	}
	code := sserr.CodeLifecycleHook
	var p *hookPanic
	if errors.As(cause, &p) {
		code = sserr.CodeLifecycleHookPanic
	}
	return sserr.Wrapf(cause, code, "statemachine: %s hook failed for state %q", phase, id).
		WithDetails(map[string]any{
			detailPhase: phase,
			detailState: id,
		})
}

// runPhase runs one lifecycle phase of a state: it guards fn against
// panics, wraps any failure as a hook error, and reports the outcome to the
// observer.
func (m *Machine[O]) runPhase(ctx context.Context, id Identity, phase Phase, fn func(context.Context) error) error {
	started := time.Now()
	err := hookError(id, phase, guard(func() error { return fn(ctx) }))
	if err != nil {
		m.observer.PhaseCompleted(m.name, id, phase, time.Since(started), err)
		m.logger.ErrorContext(ctx, "statemachine: lifecycle hook failed",
			"machine_id", m.id,
			"machine", m.name,
			"state", string(id),
			"phase", string(phase),
			"error", err,
		)
		return err
	}
	m.observer.PhaseCompleted(m.name, id, phase, time.Since(started), nil)
	return nil
}

// FailedPhase extracts the lifecycle phase and state identity from a hook
// error returned by a [Machine] operation. ok is false if err does not
// carry hook details.
//
// Example:
//
//	if phase, id, ok := statemachine.FailedPhase(err); ok {
//	    logger.Error("state failed", "phase", phase, "state", id)
//	}
func FailedPhase(err error) (phase Phase, id Identity, ok bool) {
	e, found := sserr.AsError(err)
	if !found {
		return "", "", false
	}
	phase, okPhase := e.Detail(detailPhase).(Phase)
	id, okID := e.Detail(detailState).(Identity)
	if !okPhase || !okID {
		return "", "", false
	}
	return phase, id, true
}

// FailedIdentities returns the identities of the states that failed to
// register in a [Machine.RegisterMany] call, in registration order. It
// returns nil if err is not a RegisterMany error.
func FailedIdentities(err error) []Identity {
	e, found := sserr.AsError(err)
	if !found {
		return nil
	}
	failed, _ := e.Detail(detailFailed).([]Identity)
	return failed
}
