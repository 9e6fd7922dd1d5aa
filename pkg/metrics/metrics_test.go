package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

type owner struct{}

type calm struct {
	statemachine.BaseState[*owner]
}

type alert struct {
	statemachine.BaseState[*owner]
	startErr error
}

func (s *alert) Start(context.Context, *statemachine.Machine[*owner], *statemachine.Scope) error {
	return s.startErr
}

func mustRecorder(t *testing.T) (*Recorder, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)
	return rec, reg
}

// ===========================================================================
// Observer Tests
// ===========================================================================

// TestRecorder_PhaseCompleted verifies that durations are observed and
// failures counted.
func TestRecorder_PhaseCompleted(t *testing.T) {
	t.Parallel()
	rec, _ := mustRecorder(t)

	rec.PhaseCompleted("player", "example.com/states.Idle", statemachine.PhaseStart, 2*time.Millisecond, nil)
	rec.PhaseCompleted("player", "example.com/states.Idle", statemachine.PhaseStart, time.Millisecond, errors.New("x"))

	assert.Equal(t, 1, testutil.CollectAndCount(rec.phaseDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.hookFailures.WithLabelValues("player", "Idle", "start")))
}

// TestRecorder_Transitioned verifies transition counting and the label for
// first activations.
func TestRecorder_Transitioned(t *testing.T) {
	t.Parallel()
	rec, _ := mustRecorder(t)

	rec.Transitioned("player", "", "pkg.Idle")
	rec.Transitioned("player", "pkg.Idle", "pkg.Moving")
	rec.Transitioned("player", "pkg.Idle", "pkg.Moving")

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.transitions.WithLabelValues("player", "none", "Idle")))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.transitions.WithLabelValues("player", "Idle", "Moving")))
}

// TestRecorder_Stranded verifies the stranded counter.
func TestRecorder_Stranded(t *testing.T) {
	t.Parallel()
	rec, _ := mustRecorder(t)
	rec.Stranded("player", "a", "b", errors.New("x"))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.stranded.WithLabelValues("player")))
}

// TestRecorder_Forget verifies that a machine's series are removed.
func TestRecorder_Forget(t *testing.T) {
	t.Parallel()
	rec, _ := mustRecorder(t)
	rec.Transitioned("player", "", "a")
	rec.Transitioned("enemy", "", "a")
	rec.Stranded("player", "a", "b", nil)

	rec.Forget("player")

	assert.Equal(t, 1, testutil.CollectAndCount(rec.transitions))
	assert.Equal(t, 0, testutil.CollectAndCount(rec.stranded))
}

// ===========================================================================
// Registration Tests
// ===========================================================================

// TestNewRecorder_SharedRegistry verifies that a second recorder on the
// same registry reuses the registered collectors.
func TestNewRecorder_SharedRegistry(t *testing.T) {
	t.Parallel()
	first, reg := mustRecorder(t)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	second.Stranded("player", "", "", nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(first.stranded.WithLabelValues("player")))
}

// TestNewRecorder_Conflict verifies that an incompatible collector with the
// same name is reported.
func TestNewRecorder_Conflict(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stranded_total",
		Help:      "conflicting",
	}))

	_, err := NewRecorder(reg)
	require.Error(t, err)
}

// ===========================================================================
// Machine Integration Tests
// ===========================================================================

// TestRecorder_WithMachine verifies the metrics produced by a real machine.
func TestRecorder_WithMachine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec, reg := mustRecorder(t)

	m, err := statemachine.NewBuilder[*owner]("guard").WithObserver(rec).Build()
	require.NoError(t, err)
	require.NoError(t, m.RegisterMany(ctx, []statemachine.State[*owner]{
		&calm{},
		&alert{startErr: errors.New("sensor offline")},
	}))
	require.NoError(t, m.Start(ctx, statemachine.IdentityFor[*calm]()))
	require.Error(t, m.Transition(ctx, statemachine.IdentityFor[*alert]()))

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.transitions.WithLabelValues("guard", "none", "calm")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.hookFailures.WithLabelValues("guard", "alert", "start")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.stranded.WithLabelValues("guard")))

	count, err := testutil.GatherAndCount(reg, "statemachine_phase_duration_seconds")
	require.NoError(t, err)
	// initialize x2, start calm, end calm, start alert.
	assert.Equal(t, 5, count)
}
