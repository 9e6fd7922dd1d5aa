package statemachine

import (
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// Builder constructs a [Machine] with a bound owner, logger, observer and
// tracer. Use [NewBuilder] to start building.
//
// The builder follows the fluent API pattern: all configuration methods
// return the builder for chaining. Call [Builder.Build] to validate the
// configuration and produce the machine.
//
// Example:
//
//	m, err := statemachine.NewBuilder[*Player]("player").
//	    WithOwner(player).
//	    WithLogger(logger).
//	    WithObserver(recorder).
//	    Build()
type Builder[O any] struct {
	name     string
	id       string
	owner    O
	hasOwner bool
	logger   *slog.Logger
	observer Observer
	tp       trace.TracerProvider
}

// NewBuilder creates a new builder for a machine with the given name. The
// name is validated during [Builder.Build].
func NewBuilder[O any](name string) *Builder[O] {
	return &Builder[O]{name: name}
}

// WithOwner binds the owner shared by the machine and all of its states.
// A nil owner is treated as if no owner was supplied.
func (b *Builder[O]) WithOwner(owner O) *Builder[O] {
	b.owner = owner
	b.hasOwner = !isNil(owner)
	return b
}

// WithID overrides the generated machine instance ID.
func (b *Builder[O]) WithID(id string) *Builder[O] {
	b.id = id
	return b
}

// WithLogger sets a custom [*slog.Logger] for the machine. If not called,
// [slog.Default] is used.
func (b *Builder[O]) WithLogger(logger *slog.Logger) *Builder[O] {
	b.logger = logger
	return b
}

// WithObserver sets the [Observer] notified of phase outcomes, transitions
// and stranding. If not called, events are discarded.
func (b *Builder[O]) WithObserver(observer Observer) *Builder[O] {
	b.observer = observer
	return b
}

// WithTracerProvider sets the OpenTelemetry tracer provider. If not called,
// the global provider from [otel.GetTracerProvider] is used.
func (b *Builder[O]) WithTracerProvider(tp trace.TracerProvider) *Builder[O] {
	b.tp = tp
	return b
}

// Build validates the configuration and constructs a [*Machine].
//
// If no owner was supplied, one is default-constructed: pointer types get a
// newly allocated zero value, map types an empty map, and value types their
// zero value. Owners of interface, func or chan type cannot be constructed
// and produce a [sserr.CodeConfigurationOwner] error. An empty name
// produces a [sserr.CodeConfiguration] error.
func (b *Builder[O]) Build() (*Machine[O], error) {
	if b.name == "" {
		return nil, sserr.Configuration("statemachine: machine name must not be empty")
	}

	owner := b.owner
	if !b.hasOwner {
		var err error
		if owner, err = defaultOwner[O](); err != nil {
			return nil, err
		}
	}

	id := b.id
	if id == "" {
		id = uuid.NewString()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	observer := b.observer
	if observer == nil {
		observer = nopObserver{}
	}

	tp := b.tp
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Machine[O]{
		id:       id,
		name:     b.name,
		owner:    owner,
		tracer:   tp.Tracer(tracerName),
		logger:   logger,
		observer: observer,
		states:   make(map[Identity]*slot[O]),
	}, nil
}

// New is shorthand for NewBuilder[O](name).Build() with a default-constructed
// owner.
func New[O any](name string) (*Machine[O], error) {
	return NewBuilder[O](name).Build()
}

// defaultOwner constructs the owner used when none is supplied.
func defaultOwner[O any]() (O, error) {
	var zero O
	t := reflect.TypeFor[O]()
	switch t.Kind() {
	case reflect.Pointer:
		return reflect.New(t.Elem()).Convert(t).Interface().(O), nil
	case reflect.Map:
		return reflect.MakeMap(t).Interface().(O), nil
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return zero, sserr.Newf(sserr.CodeConfigurationOwner,
			"statemachine: cannot default-construct owner of type %s", t)
	default:
		return zero, nil
	}
}
