package errors

import (
	"fmt"
)

// Error represents a structured error with a code, message, and optional cause.
// It implements the standard error interface and supports error chain
// inspection through [Error.Unwrap].
//
// Error values are treated as immutable: [Error.WithDetail] and
// [Error.WithDetails] return copies instead of modifying the receiver.
type Error struct {
	// Code is the machine-readable error code (e.g., "HOOK_001").
	Code Code

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error that caused this error, if any.
	Cause error

	// Details contains additional structured data about the error, such as
	// the lifecycle phase and state identity of a failed hook.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of this error, supporting
// errors.Unwrap, errors.Is and errors.As from the standard library.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Detail returns the detail stored under key, or nil if absent.
func (e *Error) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// WithDetails returns a new Error with the specified details merged into
// the existing ones. The original error is not modified.
func (e *Error) WithDetails(details map[string]any) *Error {
	newDetails := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		newDetails[k] = v
	}
	for k, v := range details {
		newDetails[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: newDetails,
	}
}

// WithDetail returns a new Error with a single detail key-value pair added.
// The original error is not modified.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// Format implements fmt.Formatter. Use %v for standard output and %+v for
// detailed output including details and the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
