package lifecycle

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/inspect"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// Builder constructs a [Runner]. Use [NewBuilder] to start building.
//
// Unless [Builder.WithMachine] supplies one, Build creates the machine
// itself from the builder's name, owner, ID, logger, observer and tracer
// provider.
//
// Example:
//
//	runner, err := lifecycle.NewBuilder("player", catalog, cfg).
//	    WithOwner(player).
//	    WithObserver(recorder).
//	    WithPublisher(inspect.NewRedisPublisher(client, time.Minute)).
//	    OnStateChange(func(old, new lifecycle.State) {
//	        slog.Info("runner state changed", "old", old, "new", new)
//	    }).
//	    Build()
type Builder[O any] struct {
	name    string
	catalog *statemachine.Catalog[O]
	cfg     Config

	machine   *statemachine.Machine[O]
	owner     O
	hasOwner  bool
	machineID string
	observer  statemachine.Observer

	logger        *slog.Logger
	tp            trace.TracerProvider
	publisher     inspect.Publisher
	onStart       Hook
	onStop        Hook
	stateHandlers []StateChangeHandler
}

// NewBuilder creates a builder for a runner named name that creates its
// states from catalog according to cfg.
func NewBuilder[O any](name string, catalog *statemachine.Catalog[O], cfg Config) *Builder[O] {
	return &Builder[O]{name: name, catalog: catalog, cfg: cfg}
}

// WithMachine hosts an existing machine. The builder's name, owner, ID and
// observer are then ignored.
func (b *Builder[O]) WithMachine(m *statemachine.Machine[O]) *Builder[O] {
	b.machine = m
	return b
}

// WithOwner sets the owner of the created machine.
func (b *Builder[O]) WithOwner(owner O) *Builder[O] {
	b.owner = owner
	b.hasOwner = true
	return b
}

// WithMachineID sets the ID of the created machine.
func (b *Builder[O]) WithMachineID(id string) *Builder[O] {
	b.machineID = id
	return b
}

// WithObserver sets the observer of the created machine, typically a
// metrics.Recorder.
func (b *Builder[O]) WithObserver(observer statemachine.Observer) *Builder[O] {
	b.observer = observer
	return b
}

// WithLogger sets the logger of the runner and of the created machine.
// Defaults to [slog.Default].
func (b *Builder[O]) WithLogger(logger *slog.Logger) *Builder[O] {
	b.logger = logger
	return b
}

// WithTracerProvider sets the tracer provider. Defaults to the global
// provider.
func (b *Builder[O]) WithTracerProvider(tp trace.TracerProvider) *Builder[O] {
	b.tp = tp
	return b
}

// WithPublisher sets where snapshots are published after every tick and
// lifecycle change. Defaults to [inspect.Nop].
func (b *Builder[O]) WithPublisher(p inspect.Publisher) *Builder[O] {
	b.publisher = p
	return b
}

// WithOnStart sets a hook run at the beginning of [Runner.Start], before
// any state is created.
func (b *Builder[O]) WithOnStart(hook Hook) *Builder[O] {
	b.onStart = hook
	return b
}

// WithOnStop sets a hook run at the end of [Runner.Stop], after the
// machine is torn down.
func (b *Builder[O]) WithOnStop(hook Hook) *Builder[O] {
	b.onStop = hook
	return b
}

// OnStateChange adds a [StateChangeHandler]. Handlers are called in the
// order they were added.
func (b *Builder[O]) OnStateChange(handler StateChangeHandler) *Builder[O] {
	b.stateHandlers = append(b.stateHandlers, handler)
	return b
}

// Build validates the configuration and creates the runner in
// [StateUnknown].
//
// Errors:
//   - [sserr.CodeConfiguration]: no catalog, or the machine cannot be built
//   - the validation codes of [Config.Validate]
func (b *Builder[O]) Build() (*Runner[O], error) {
	if b.catalog == nil {
		return nil, sserr.Configuration("lifecycle: runner requires a state catalog")
	}
	cfg := b.cfg
	cfg.States = append([]string(nil), b.cfg.States...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tp
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	publisher := b.publisher
	if publisher == nil {
		publisher = inspect.Nop{}
	}

	machine := b.machine
	if machine == nil {
		mb := statemachine.NewBuilder[O](b.name).
			WithLogger(logger).
			WithTracerProvider(tp)
		if b.hasOwner {
			mb = mb.WithOwner(b.owner)
		}
		if b.machineID != "" {
			mb = mb.WithID(b.machineID)
		}
		if b.observer != nil {
			mb = mb.WithObserver(b.observer)
		}
		var err error
		if machine, err = mb.Build(); err != nil {
			return nil, err
		}
	}

	handlers := make([]StateChangeHandler, len(b.stateHandlers))
	copy(handlers, b.stateHandlers)

	return &Runner[O]{
		machine:       machine,
		catalog:       b.catalog,
		cfg:           cfg,
		publisher:     publisher,
		tracer:        tp.Tracer(tracerName),
		logger:        logger,
		onStart:       b.onStart,
		onStop:        b.onStop,
		stateHandlers: handlers,
		state:         StateUnknown,
	}, nil
}
