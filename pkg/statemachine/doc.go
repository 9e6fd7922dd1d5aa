// Package statemachine provides a generic finite-state-machine runtime.
//
// A [Machine] owns a fixed set of registered [State] values, all sharing a
// single owner of type O, and keeps exactly one of them active at a time.
// States implement a lifecycle contract:
//
//	Initialize  once, when registered
//	Start       on every activation, with a fresh [Scope]
//	Update      on every tick while active
//	End         on every deactivation; the scope closes afterwards
//	Destroy     once, at teardown
//
// The engine, not the states, tracks per-activation bookkeeping: elapsed
// active time, the started flag and the activation [Scope]. A Scope
// carries a cancellation context, tracked background work and releasable
// resources; when an activation ends the engine cancels the context, waits
// for all tracked work and then releases resources in reverse order.
//
// # Usage
//
//	m, err := statemachine.NewBuilder[*Player]("player").
//	    WithOwner(player).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	if err := m.RegisterMany(ctx, []statemachine.State[*Player]{&Idle{}, &Moving{}}); err != nil {
//	    return err
//	}
//	if err := m.Start(ctx, statemachine.IdentityFor[*Idle]()); err != nil {
//	    return err
//	}
//	for range ticker.C {
//	    if err := m.Tick(ctx, interval); err != nil {
//	        logger.Error("tick failed", "error", err)
//	    }
//	}
//
// States switch by calling [Machine.RequestChange] or [ChangeTo] from
// Update; the switch happens after Update returns. Hosts switch with
// [Machine.Transition].
//
// # Errors
//
// Operations return [*sserr.Error] values from package
// github.com/StricklySoft/stricklysoft-statemachine/pkg/errors:
// configuration errors (CFG_xxx), unknown states (NF_001) and lifecycle
// hook failures (HOOK_xxx).
package statemachine
