package lifecycle

import (
	"slices"
	"strings"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// DefaultTickInterval is the tick period used when none is configured.
const DefaultTickInterval = 100 * time.Millisecond

// Config selects which states a [Runner] registers and which one it starts
// with. It is loaded with pkg/config.
type Config struct {
	// States lists the enabled state names. Each name is a full identity
	// or an unambiguous short type name (see [ResolveIdentity]).
	States []string `json:"states" yaml:"states" env:"STATES" required:"true"`

	// Initial is the name of the state started first. It must name one of
	// States, either as written there or as the full identity of a short
	// name listed there (and the other way round).
	Initial string `json:"initial" yaml:"initial" env:"INITIAL_STATE" required:"true"`

	// TickInterval is the period of automatic ticks. Zero disables the
	// ticker; the host then drives the machine with [Runner.Tick].
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval" env:"TICK_INTERVAL" envDefault:"100ms"`
}

// Validate checks that at least one state is enabled, the initial state is
// among them and the tick interval is not negative.
func (c *Config) Validate() error {
	if len(c.States) == 0 {
		return sserr.New(sserr.CodeValidationRequired,
			"lifecycle: config must enable at least one state")
	}
	if c.Initial == "" {
		return sserr.New(sserr.CodeValidationRequired,
			"lifecycle: config initial state must not be empty")
	}
	if !slices.ContainsFunc(c.States, func(name string) bool { return sameStateName(name, c.Initial) }) {
		return sserr.Validationf(
			"lifecycle: config initial state %q is not among the enabled states %v",
			c.Initial, c.States)
	}
	if c.TickInterval < 0 {
		return sserr.Newf(sserr.CodeValidationRange,
			"lifecycle: config tick_interval must not be negative, got %s", c.TickInterval)
	}
	return nil
}

// sameStateName reports whether two configured names can refer to the same
// state: they are equal, or one is a short name matching the other's short
// form. Two different full identities never match.
func sameStateName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	sa, sb := statemachine.Identity(a).Short(), statemachine.Identity(b).Short()
	if sa != sb {
		return false
	}
	return sa == a || sb == b
}
