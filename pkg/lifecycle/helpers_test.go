package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-statemachine/internal/testutil"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// rig is the owner shared by the test states.
type rig struct {
	alarm atomic.Bool

	mu     sync.Mutex
	events []string
}

func (r *rig) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *rig) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// calm switches to alert once the alarm is raised.
type calm struct {
	statemachine.BaseState[*rig]
}

func (s *calm) Initialize(_ context.Context, m *statemachine.Machine[*rig]) error {
	m.Owner().record("calm.initialize")
	return nil
}

func (s *calm) Start(_ context.Context, m *statemachine.Machine[*rig], _ *statemachine.Scope) error {
	m.Owner().record("calm.start")
	return nil
}

func (s *calm) Update(m *statemachine.Machine[*rig], _ time.Duration) {
	if m.Owner().alarm.Load() {
		statemachine.ChangeTo[*alert](m)
	}
}

func (s *calm) End(_ context.Context, m *statemachine.Machine[*rig], _ *statemachine.Scope) error {
	m.Owner().record("calm.end")
	return nil
}

func (s *calm) Destroy(_ context.Context, m *statemachine.Machine[*rig]) error {
	m.Owner().record("calm.destroy")
	return nil
}

// alert switches back to calm once the alarm clears.
type alert struct {
	statemachine.BaseState[*rig]
}

func (s *alert) Initialize(_ context.Context, m *statemachine.Machine[*rig]) error {
	m.Owner().record("alert.initialize")
	return nil
}

func (s *alert) Start(_ context.Context, m *statemachine.Machine[*rig], _ *statemachine.Scope) error {
	m.Owner().record("alert.start")
	return nil
}

func (s *alert) Update(m *statemachine.Machine[*rig], _ time.Duration) {
	if !m.Owner().alarm.Load() {
		statemachine.ChangeTo[*calm](m)
	}
}

func (s *alert) End(_ context.Context, m *statemachine.Machine[*rig], _ *statemachine.Scope) error {
	m.Owner().record("alert.end")
	return nil
}

func (s *alert) Destroy(_ context.Context, m *statemachine.Machine[*rig]) error {
	m.Owner().record("alert.destroy")
	return nil
}

// broken cannot start.
type broken struct {
	statemachine.BaseState[*rig]
}

var errNoPower = errors.New("no power")

func (s *broken) Start(context.Context, *statemachine.Machine[*rig], *statemachine.Scope) error {
	return errNoPower
}

func (s *broken) Destroy(_ context.Context, m *statemachine.Machine[*rig]) error {
	m.Owner().record("broken.destroy")
	return nil
}

// jammed asks to return to calm on every tick but cannot end.
type jammed struct {
	statemachine.BaseState[*rig]
}

var errJammed = errors.New("relay jammed")

func (s *jammed) Update(m *statemachine.Machine[*rig], _ time.Duration) {
	statemachine.ChangeTo[*calm](m)
}

func (s *jammed) End(context.Context, *statemachine.Machine[*rig], *statemachine.Scope) error {
	return errJammed
}

func newCatalog(t *testing.T) *statemachine.Catalog[*rig] {
	t.Helper()
	c := statemachine.NewCatalog[*rig]()
	require.NoError(t, statemachine.Provide(c, func() *calm { return &calm{} }))
	require.NoError(t, statemachine.Provide(c, func() *alert { return &alert{} }))
	require.NoError(t, statemachine.Provide(c, func() *broken { return &broken{} }))
	require.NoError(t, statemachine.Provide(c, func() *jammed { return &jammed{} }))
	return c
}

func manualConfig(initial string, states ...string) Config {
	return Config{States: states, Initial: initial}
}

// fixture is a runner over a fresh rig with a recording publisher.
type fixture struct {
	owner     *rig
	publisher *testutil.RecordingPublisher
	runner    *Runner[*rig]
}

func newFixture(t *testing.T, cfg Config, opts ...func(*Builder[*rig])) fixture {
	t.Helper()
	f := fixture{owner: &rig{}, publisher: &testutil.RecordingPublisher{}}
	b := NewBuilder("control", newCatalog(t), cfg).
		WithOwner(f.owner).
		WithMachineID("m-1").
		WithPublisher(f.publisher)
	for _, opt := range opts {
		opt(b)
	}
	var err error
	f.runner, err = b.Build()
	require.NoError(t, err)
	return f
}

func startedFixture(t *testing.T) fixture {
	t.Helper()
	f := newFixture(t, manualConfig("calm", "calm", "alert"))
	require.NoError(t, f.runner.Start(context.Background()))
	return f
}
