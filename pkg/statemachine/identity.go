package statemachine

import (
	"reflect"
	"strings"
)

// Identity is the stable key under which a state is registered with a
// [Machine] and addressed by [Machine.Start], [Machine.Transition] and
// [Machine.RequestChange].
//
// By default the identity of a state is derived from its concrete Go type:
// "<import path>.<TypeName>", with pointers stripped, so *Idle and Idle share
// an identity. A state may choose its own identity by implementing
// [Identifier].
type Identity string

// String returns the identity as a string.
func (id Identity) String() string {
	return string(id)
}

// Short returns the identity without its package qualification: the part
// after the last "." (e.g., "example.com/game/states.Idle" -> "Idle").
// Type arguments of generic states are dropped, so
// "example.com/game.Patrol[example.com/game.Guard]" is "Patrol".
// Identities chosen through [Identifier] without a "." are returned as-is.
func (id Identity) Short() string {
	s := string(id)
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Identifier is implemented by states that choose their own identity
// instead of the type-derived default.
type Identifier interface {
	StateIdentity() Identity
}

// IdentityOf returns the identity of a state value. If v implements
// [Identifier] its StateIdentity is used; otherwise the identity is derived
// from the dynamic type of v. IdentityOf returns "" for a nil value.
func IdentityOf(v any) Identity {
	if v == nil {
		return ""
	}
	if named, ok := v.(Identifier); ok {
		return named.StateIdentity()
	}
	return typeIdentity(reflect.TypeOf(v))
}

// IdentityFor returns the type-derived identity of S. It does not consult
// [Identifier], because no value of S is available; use [IdentityOf] for
// states that name themselves.
//
// Example:
//
//	err := m.Start(ctx, statemachine.IdentityFor[*Idle]())
func IdentityFor[S any]() Identity {
	return typeIdentity(reflect.TypeFor[S]())
}

func typeIdentity(t reflect.Type) Identity {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return Identity(t.String())
	}
	return Identity(t.PkgPath() + "." + t.Name())
}
