package statemachine

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scope is the per-activation cancellation and resource scope of a state.
// The engine creates a fresh Scope immediately before a state's Start hook
// runs and closes it after the state's End hook returns. A Scope is never
// shared between states or between activations.
//
// A Scope bundles three things:
//
//   - a cancellation context ([Scope.Context], [Scope.Done]) that is
//     canceled when the activation ends;
//   - tracked background work ([Scope.Go]) that is awaited after
//     cancellation and before any resource is released;
//   - an ordered list of release callbacks ([Scope.Defer],
//     [Scope.AddCloser]) run in reverse registration order.
//
// Close order is strict: cancel, await all work, release resources. Work
// started with Go may therefore use resources registered with Defer right up
// to the moment it observes cancellation.
//
// All Scope methods are safe for concurrent use.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	gctx   context.Context

	mu       sync.Mutex
	releases []func() error
	closed   bool

	// request forwards a change request to the owning machine, tagged with
	// this scope's activation.
	request func(Identity)
}

// newScope creates a live scope. The scope's context is detached from the
// caller's cancellation but keeps its values, so an activation outlives the
// Start call that created it.
func newScope(parent context.Context, request func(Identity)) *Scope {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	group, gctx := errgroup.WithContext(ctx)
	return &Scope{
		ctx:     ctx,
		cancel:  cancel,
		group:   group,
		gctx:    gctx,
		request: request,
	}
}

// Context returns the activation context. It is canceled when the
// activation ends. Pass it to any asynchronous operation the state starts.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Done is shorthand for s.Context().Done().
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Active reports whether the activation is still live.
func (s *Scope) Active() bool {
	return s.ctx.Err() == nil
}

// Go runs fn in a new goroutine bound to the activation. fn receives a
// context that is canceled when the activation ends or when another
// function started with Go returns a non-nil error. End waits for every fn
// to return before releasing resources. A panic in fn is recovered and
// reported from End like a hook panic.
//
// Go is a no-op on a closed scope.
func (s *Scope) Go(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.group.Go(func() error {
		return guard(func() error { return fn(s.gctx) })
	})
}

// Defer registers a release callback. Callbacks run in reverse
// registration order when the activation ends, after all work started with
// [Scope.Go] has returned.
//
// If the scope is already closed, release runs immediately and its error
// is returned.
func (s *Scope) Defer(release func() error) error {
	if release == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return release()
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
	return nil
}

// AddCloser registers c to be closed when the activation ends. It follows
// the same rules as [Scope.Defer].
func (s *Scope) AddCloser(c io.Closer) error {
	if c == nil {
		return nil
	}
	return s.Defer(c.Close)
}

// Len returns the number of release callbacks currently registered.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.releases)
}

// RequestChange asks the owning machine to transition to target once the
// current tick completes. Requests from a scope whose activation already
// ended are ignored, so background work that finishes late cannot move the
// machine out of a state it no longer belongs to.
func (s *Scope) RequestChange(target Identity) {
	if !s.Active() || s.request == nil {
		return
	}
	s.request(target)
}

// close ends the activation: cancel, await tracked work, then release every
// registered resource in reverse order. It returns the first non-cancellation
// error reported by tracked work joined with every release error. close is
// idempotent; later calls return nil.
func (s *Scope) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	var errs []error
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}

	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		if err := releases[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
