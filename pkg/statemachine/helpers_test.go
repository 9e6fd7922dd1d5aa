package statemachine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// player is the owner type used throughout the machine tests.
type player struct {
	moving bool
	hits   int
}

// eventLog records hook invocations across states in call order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

// scripted is a configurable state that names itself and records every hook.
type scripted struct {
	BaseState[*player]

	name string
	log  *eventLog

	initErr    error
	startErr   error
	endErr     error
	destroyErr error

	onStart  func(m *Machine[*player], scope *Scope) error
	onUpdate func(m *Machine[*player], delta time.Duration)
	onEnd    func(m *Machine[*player], scope *Scope)

	inits    int
	starts   int
	updates  int
	ends     int
	destroys int
}

func newScripted(name string, log *eventLog) *scripted {
	return &scripted{name: name, log: log}
}

func (p *scripted) StateIdentity() Identity { return Identity(p.name) }

func (p *scripted) Initialize(_ context.Context, _ *Machine[*player]) error {
	p.inits++
	p.log.add(p.name + ".initialize")
	return p.initErr
}

func (p *scripted) Start(_ context.Context, m *Machine[*player], scope *Scope) error {
	p.starts++
	p.log.add(p.name + ".start")
	if p.onStart != nil {
		if err := p.onStart(m, scope); err != nil {
			return err
		}
	}
	return p.startErr
}

func (p *scripted) Update(m *Machine[*player], delta time.Duration) {
	p.updates++
	if p.onUpdate != nil {
		p.onUpdate(m, delta)
	}
}

func (p *scripted) End(_ context.Context, m *Machine[*player], scope *Scope) error {
	p.ends++
	p.log.add(p.name + ".end")
	if p.onEnd != nil {
		p.onEnd(m, scope)
	}
	return p.endErr
}

func (p *scripted) Destroy(_ context.Context, _ *Machine[*player]) error {
	p.destroys++
	p.log.add(p.name + ".destroy")
	return p.destroyErr
}

// idle and moving are type-identified states for the player scenario.
type idle struct {
	BaseState[*player]
}

func (s *idle) Update(m *Machine[*player], _ time.Duration) {
	if m.Owner().moving {
		ChangeTo[*moving](m)
	}
}

type moving struct {
	BaseState[*player]
}

func (s *moving) Update(m *Machine[*player], _ time.Duration) {
	if !m.Owner().moving {
		ChangeTo[*idle](m)
	}
}

// recordingObserver captures Observer callbacks.
type recordingObserver struct {
	mu          sync.Mutex
	phases      []string
	failures    int
	transitions [][2]Identity
	stranded    int
}

func (o *recordingObserver) PhaseCompleted(_ string, state Identity, phase Phase, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, string(state)+"."+string(phase))
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) Transitioned(_ string, from, to Identity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, [2]Identity{from, to})
}

func (o *recordingObserver) Stranded(string, Identity, Identity, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stranded++
}

// mustBuildMachine builds a machine with a fresh player owner.
func mustBuildMachine(t *testing.T) *Machine[*player] {
	t.Helper()
	m, err := NewBuilder[*player]("test-machine").WithOwner(&player{}).Build()
	require.NoError(t, err)
	return m
}

// mustRegister registers every state, failing the test on error.
func mustRegister(t *testing.T, m *Machine[*player], states ...State[*player]) {
	t.Helper()
	require.NoError(t, m.RegisterMany(context.Background(), states))
}
