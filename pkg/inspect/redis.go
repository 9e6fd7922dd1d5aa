package inspect

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// Hash field names.
const (
	fieldMachine    = "machine"
	fieldState      = "state"
	fieldElapsed    = "elapsed_ms"
	fieldReady      = "ready"
	fieldStranded   = "stranded"
	fieldActivation = "activation"
	fieldRegistered = "registered"
	fieldUpdatedAt  = "updated_at"
)

// RedisPublisher stores snapshots in Redis hashes.
type RedisPublisher struct {
	store  Store
	prefix string
	ttl    time.Duration
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher writing to store. If ttl is
// positive, every Publish refreshes the key's expiry so snapshots of
// crashed hosts disappear on their own.
func NewRedisPublisher(store Store, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{store: store, prefix: DefaultKeyPrefix, ttl: ttl}
}

// WithPrefix sets the key prefix. An empty prefix restores
// [DefaultKeyPrefix].
func (p *RedisPublisher) WithPrefix(prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	p.prefix = prefix
	return p
}

// Publish writes snap to the machine's hash.
func (p *RedisPublisher) Publish(ctx context.Context, snap statemachine.Snapshot) error {
	if snap.MachineID == "" {
		return sserr.Validation("inspect: snapshot has no machine id")
	}
	key := Key(p.prefix, snap.MachineID)
	if _, err := p.store.HSet(ctx, key, encode(snap)...); err != nil {
		return err
	}
	if p.ttl > 0 {
		if _, err := p.store.Expire(ctx, key, p.ttl); err != nil {
			return err
		}
	}
	return nil
}

// Clear deletes the machine's hash.
func (p *RedisPublisher) Clear(ctx context.Context, machineID string) error {
	_, err := p.store.Del(ctx, Key(p.prefix, machineID))
	return err
}

// Reader loads published snapshots.
type Reader struct {
	store  Store
	prefix string
}

// NewReader creates a Reader over store using [DefaultKeyPrefix].
func NewReader(store Store) *Reader {
	return &Reader{store: store, prefix: DefaultKeyPrefix}
}

// WithPrefix sets the key prefix.
func (r *Reader) WithPrefix(prefix string) *Reader {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	r.prefix = prefix
	return r
}

// Load returns the latest snapshot of a machine. It returns a
// [sserr.CodeSnapshotNotFound] error if none is stored, and a
// [sserr.CodeInternalStorage] error if the stored hash is malformed.
func (r *Reader) Load(ctx context.Context, machineID string) (statemachine.Snapshot, error) {
	fields, err := r.store.HGetAll(ctx, Key(r.prefix, machineID))
	if err != nil {
		return statemachine.Snapshot{}, err
	}
	if len(fields) == 0 {
		return statemachine.Snapshot{}, sserr.Newf(sserr.CodeSnapshotNotFound,
			"inspect: no snapshot for machine %q", machineID)
	}
	snap, err := decode(machineID, fields)
	if err != nil {
		return statemachine.Snapshot{}, sserr.Wrapf(err, sserr.CodeInternalStorage,
			"inspect: malformed snapshot for machine %q", machineID)
	}
	return snap, nil
}

func encode(snap statemachine.Snapshot) []interface{} {
	ids := make([]string, len(snap.Registered))
	for i, id := range snap.Registered {
		ids[i] = string(id)
	}
	// Identities of generic states contain commas, so the list is JSON.
	registered, _ := json.Marshal(ids)
	return []interface{}{
		fieldMachine, snap.Machine,
		fieldState, string(snap.State),
		fieldElapsed, strconv.FormatInt(snap.Elapsed.Milliseconds(), 10),
		fieldReady, strconv.FormatBool(snap.Ready),
		fieldStranded, strconv.FormatBool(snap.Stranded),
		fieldActivation, strconv.FormatUint(snap.Activation, 10),
		fieldRegistered, string(registered),
		fieldUpdatedAt, snap.TakenAt.UTC().Format(time.RFC3339Nano),
	}
}

func decode(machineID string, fields map[string]string) (statemachine.Snapshot, error) {
	snap := statemachine.Snapshot{
		MachineID:  machineID,
		Machine:    fields[fieldMachine],
		State:      statemachine.Identity(fields[fieldState]),
		Registered: []statemachine.Identity{},
	}

	var err error
	if v, ok := fields[fieldElapsed]; ok {
		var ms int64
		if ms, err = strconv.ParseInt(v, 10, 64); err != nil {
			return snap, err
		}
		snap.Elapsed = time.Duration(ms) * time.Millisecond
	}
	if v, ok := fields[fieldReady]; ok {
		if snap.Ready, err = strconv.ParseBool(v); err != nil {
			return snap, err
		}
	}
	if v, ok := fields[fieldStranded]; ok {
		if snap.Stranded, err = strconv.ParseBool(v); err != nil {
			return snap, err
		}
	}
	if v, ok := fields[fieldActivation]; ok {
		if snap.Activation, err = strconv.ParseUint(v, 10, 64); err != nil {
			return snap, err
		}
	}
	if v := fields[fieldRegistered]; v != "" {
		if err = json.Unmarshal([]byte(v), &snap.Registered); err != nil {
			return snap, err
		}
		if snap.Registered == nil {
			snap.Registered = []statemachine.Identity{}
		}
	}
	if v, ok := fields[fieldUpdatedAt]; ok {
		if snap.TakenAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
