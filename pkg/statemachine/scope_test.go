package statemachine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// TestScope_Close_Order verifies that close cancels, awaits tracked work and
// then releases resources in reverse order.
func TestScope_Close_Order(t *testing.T) {
	t.Parallel()
	log := &eventLog{}
	s := newScope(context.Background(), nil)

	require.NoError(t, s.Defer(func() error { log.add("release.1"); return nil }))
	require.NoError(t, s.AddCloser(closerFunc(func() error { log.add("release.2"); return nil })))
	s.Go(func(ctx context.Context) error {
		<-ctx.Done()
		log.add("work")
		return nil
	})
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Active())

	require.NoError(t, s.close())
	assert.False(t, s.Active())
	assert.Equal(t, []string{"work", "release.2", "release.1"}, log.all())
	assert.Equal(t, 0, s.Len())
}

// TestScope_Close_Idempotent verifies that releases run only once.
func TestScope_Close_Idempotent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := newScope(context.Background(), nil)
	require.NoError(t, s.Defer(func() error { calls.Add(1); return nil }))

	require.NoError(t, s.close())
	require.NoError(t, s.close())
	assert.Equal(t, int32(1), calls.Load())
}

// TestScope_Close_CollectsErrors verifies that work and release errors are
// joined and every release still runs.
func TestScope_Close_CollectsErrors(t *testing.T) {
	t.Parallel()
	workErr := errors.New("work failed")
	releaseErr := errors.New("release failed")
	var released atomic.Bool
	s := newScope(context.Background(), nil)

	require.NoError(t, s.Defer(func() error { released.Store(true); return nil }))
	require.NoError(t, s.Defer(func() error { return releaseErr }))
	s.Go(func(context.Context) error { return workErr })

	err := s.close()
	require.Error(t, err)
	assert.ErrorIs(t, err, workErr)
	assert.ErrorIs(t, err, releaseErr)
	assert.True(t, released.Load())
}

// TestScope_Close_IgnoresCancellation verifies that work returning the
// context error is not reported as a failure.
func TestScope_Close_IgnoresCancellation(t *testing.T) {
	t.Parallel()
	s := newScope(context.Background(), nil)
	s.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, s.close())
}

// TestScope_Close_RecoversWorkPanic verifies that a panic in tracked work
// is returned from close instead of crashing the process, and that releases
// still run.
func TestScope_Close_RecoversWorkPanic(t *testing.T) {
	t.Parallel()
	var released atomic.Bool
	s := newScope(context.Background(), nil)
	require.NoError(t, s.Defer(func() error { released.Store(true); return nil }))
	s.Go(func(context.Context) error { panic("worker exploded") })

	err := s.close()
	require.Error(t, err)
	var p *hookPanic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "worker exploded", p.value)
	assert.NotEmpty(t, p.stack)
	assert.True(t, released.Load())
}

// TestScope_DetachedFromParent verifies that canceling the context passed to
// Start does not end the activation.
func TestScope_DetachedFromParent(t *testing.T) {
	t.Parallel()
	parent, cancel := context.WithCancel(context.Background())
	s := newScope(parent, nil)
	cancel()

	assert.True(t, s.Active())
	require.NoError(t, s.close())
	assert.Error(t, s.Context().Err())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed after close")
	}
}

// TestScope_AfterClose verifies that Defer runs immediately and Go is
// ignored once the scope is closed.
func TestScope_AfterClose(t *testing.T) {
	t.Parallel()
	s := newScope(context.Background(), nil)
	require.NoError(t, s.close())

	ran := false
	require.NoError(t, s.Defer(func() error { ran = true; return nil }))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.Defer(func() error { return boom }), boom)

	var started atomic.Bool
	s.Go(func(context.Context) error { started.Store(true); return nil })
	assert.False(t, started.Load())
	assert.NoError(t, s.Defer(nil))
	assert.NoError(t, s.AddCloser(nil))
}

// TestScope_RequestChange verifies that requests are forwarded only while
// the scope is active.
func TestScope_RequestChange(t *testing.T) {
	t.Parallel()
	var got []Identity
	s := newScope(context.Background(), func(id Identity) { got = append(got, id) })

	s.RequestChange("next")
	require.NoError(t, s.close())
	s.RequestChange("late")

	assert.Equal(t, []Identity{"next"}, got)
}
