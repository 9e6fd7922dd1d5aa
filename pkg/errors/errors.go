// Package errors provides the structured error type used across the
// state-machine runtime. Every failure surfaced by the engine, the host
// runner, the configuration loader and the inspection publisher is an
// [*Error] carrying a machine-readable [Code], a human-readable message, an
// optional cause and optional structured details.
//
// # Error Categories
//
//   - Configuration errors (CFG): an owner cannot be constructed, a nil
//     state was registered, a machine was built without a name
//   - Not found errors (NF): a start or transition target is not registered,
//     a catalog has no factory for an identity
//   - Lifecycle hook errors (HOOK): a state's Initialize, Start, End or
//     Destroy hook returned an error or panicked
//   - Conflict errors (CONF): an operation conflicts with the current state
//     (a machine is already active, a factory is already registered)
//   - Validation errors (VAL): configuration values failed validation
//   - Unavailable, timeout and internal errors for the inspection backend
//
// # Usage
//
//	err := errors.New(errors.CodeUnknownState, "statemachine: state is not registered")
//
//	err = errors.Wrap(cause, errors.CodeLifecycleHook, "statemachine: start hook failed").
//	    WithDetail("phase", "start")
//
//	if errors.IsUnknownState(err) {
//	    // the machine may be stranded
//	}
package errors
