// Package inspect publishes state machine snapshots for inspector tooling
// and reads them back for display.
//
// A host publishes a [statemachine.Snapshot] after every tick or
// transition through a [Publisher]. [RedisPublisher] stores each machine
// in one Redis hash:
//
//	HSET statemachine:<machine id> machine <name> state <identity> elapsed_ms <ms>
//	     ready <bool> stranded <bool> activation <n> registered <json array of ids>
//	     updated_at <RFC 3339>
//	EXPIRE statemachine:<machine id> <ttl>
//
// [Reader] loads the hash back into a Snapshot.
package inspect

import (
	"context"
	"time"

	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// DefaultKeyPrefix is the prefix of snapshot hash keys.
const DefaultKeyPrefix = "statemachine"

// Publisher receives machine snapshots.
type Publisher interface {
	// Publish stores snap, replacing the previous snapshot of the same
	// machine.
	Publish(ctx context.Context, snap statemachine.Snapshot) error

	// Clear removes the stored snapshot of a machine.
	Clear(ctx context.Context, machineID string) error
}

// Store is the hash storage used by [RedisPublisher] and [Reader]. It is
// satisfied by *redis.Client from pkg/clients/redis.
type Store interface {
	HSet(ctx context.Context, key string, values ...interface{}) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

// Key returns the hash key of a machine.
func Key(prefix, machineID string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":" + machineID
}

// Nop is a Publisher that discards snapshots.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, statemachine.Snapshot) error { return nil }

// Clear does nothing.
func (Nop) Clear(context.Context, string) error { return nil }
