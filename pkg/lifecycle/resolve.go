package lifecycle

import (
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// ResolveIdentity maps a configured state name to an identity provided by
// catalog. A name that equals a provided identity wins; otherwise the
// name must match the [statemachine.Identity.Short] form of exactly one
// provided identity.
//
// Errors:
//   - [sserr.CodeUnknownState]: nothing matches
//   - [sserr.CodeConfigurationState]: the name is empty or several
//     identities share the short name
func ResolveIdentity[O any](catalog *statemachine.Catalog[O], name string) (statemachine.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", sserr.New(sserr.CodeConfigurationState,
			"lifecycle: state name must not be empty")
	}
	if id := statemachine.Identity(name); catalog.Has(id) {
		return id, nil
	}

	var matches []statemachine.Identity
	for _, id := range catalog.Identities() {
		if id.Short() == name {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", sserr.UnknownStatef("lifecycle: no state named %q is provided", name)
	case 1:
		return matches[0], nil
	default:
		return "", sserr.Newf(sserr.CodeConfigurationState,
			"lifecycle: state name %q is ambiguous, use one of %v", name, matches).
			WithDetail("candidates", matches)
	}
}

// resolveAll resolves every name in order.
func resolveAll[O any](catalog *statemachine.Catalog[O], names []string) ([]statemachine.Identity, error) {
	ids := make([]statemachine.Identity, 0, len(names))
	for _, name := range names {
		id, err := ResolveIdentity(catalog, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
