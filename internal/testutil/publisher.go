package testutil

import (
	"context"
	"sync"

	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// RecordingPublisher keeps every published snapshot in memory. It
// satisfies inspect.Publisher.
type RecordingPublisher struct {
	mu        sync.Mutex
	snapshots []statemachine.Snapshot
	cleared   []string

	// Err, if set, is returned from Publish.
	Err error
}

// Publish records snap.
func (p *RecordingPublisher) Publish(_ context.Context, snap statemachine.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snap)
	return p.Err
}

// Clear records machineID.
func (p *RecordingPublisher) Clear(_ context.Context, machineID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, machineID)
	return nil
}

// Snapshots returns a copy of the recorded snapshots.
func (p *RecordingPublisher) Snapshots() []statemachine.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]statemachine.Snapshot(nil), p.snapshots...)
}

// Last returns the most recent snapshot and whether there is one.
func (p *RecordingPublisher) Last() (statemachine.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return statemachine.Snapshot{}, false
	}
	return p.snapshots[len(p.snapshots)-1], true
}

// Cleared returns the machine IDs passed to Clear.
func (p *RecordingPublisher) Cleared() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.cleared...)
}
