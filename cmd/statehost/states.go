package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// walkingSpeed is in meters per second.
const walkingSpeed = 1.4

// Player is the owner shared by the demo states.
type Player struct {
	logger *slog.Logger
	moving atomic.Bool

	mu       sync.Mutex
	distance float64
}

// SetMoving simulates input.
func (p *Player) SetMoving(v bool) { p.moving.Store(v) }

// Moving reports the simulated input.
func (p *Player) Moving() bool { return p.moving.Load() }

// Distance returns the meters walked so far.
func (p *Player) Distance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.distance
}

func (p *Player) walk(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.distance += walkingSpeed * d.Seconds()
}

// Idle waits for the player to move.
type Idle struct {
	statemachine.BaseState[*Player]
}

func (s *Idle) Update(m *statemachine.Machine[*Player], _ time.Duration) {
	if m.Owner().Moving() {
		statemachine.ChangeTo[*Moving](m)
	}
}

// Moving walks the player until the input stops. While active it logs the
// distance covered every second.
type Moving struct {
	statemachine.BaseState[*Player]
}

func (s *Moving) Start(_ context.Context, m *statemachine.Machine[*Player], scope *statemachine.Scope) error {
	p := m.Owner()
	scope.Go(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				p.logger.Info("statehost: player walking", "distance_m", p.Distance())
			}
		}
	})
	return scope.Defer(func() error {
		p.logger.Info("statehost: player stopped", "distance_m", p.Distance())
		return nil
	})
}

func (s *Moving) Update(m *statemachine.Machine[*Player], delta time.Duration) {
	p := m.Owner()
	p.walk(delta)
	if !p.Moving() {
		statemachine.ChangeTo[*Idle](m)
	}
}
