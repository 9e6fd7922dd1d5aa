package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error by traversing the
// error chain with errors.As. Returns nil and false if no *Error is found.
//
// Example:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("operation failed", "code", e.Code, "message", e.Message)
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error. If the error is nil or not
// an *Error, it returns an empty code.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the specified error code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// HasCodeInChain reports whether any *Error in err's chain carries code.
// Unlike [HasCode], it looks past the outermost *Error, so a hook failure
// wrapped by a teardown aggregate is still found.
func HasCodeInChain(err error, code Code) bool {
	found := false
	walk(err, func(e *Error) bool {
		if e.Code == code {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsConfiguration reports whether err is a configuration error (CFG_xxx).
func IsConfiguration(err error) bool {
	return hasCategory(err, "CFG")
}

// IsNotFound reports whether err is a not found error (NF_xxx).
func IsNotFound(err error) bool {
	return hasCategory(err, "NF")
}

// IsUnknownState reports whether err is an unknown-state error.
//
// Example:
//
//	if errors.IsUnknownState(err) {
//	    // the target identity was never registered
//	}
func IsUnknownState(err error) bool {
	return HasCode(err, CodeUnknownState)
}

// IsLifecycleHook reports whether err is a lifecycle hook error (HOOK_xxx),
// including hook panics.
func IsLifecycleHook(err error) bool {
	return hasCategory(err, "HOOK")
}

// IsConflict reports whether err is a conflict error (CONF_xxx).
func IsConflict(err error) bool {
	return hasCategory(err, "CONF")
}

// IsValidation reports whether err is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	return hasCategory(err, "VAL")
}

// IsInternal reports whether err is an internal error (INT_xxx).
func IsInternal(err error) bool {
	return hasCategory(err, "INT")
}

// IsUnavailable reports whether err is an unavailability error (UNAVAIL_xxx).
func IsUnavailable(err error) bool {
	return hasCategory(err, "UNAVAIL")
}

// IsTimeout reports whether err is a timeout error (TIMEOUT_xxx).
func IsTimeout(err error) bool {
	return hasCategory(err, "TIMEOUT")
}

// IsRetryable reports whether the error is potentially retryable. Timeout
// and unavailable errors are retryable. Lifecycle hook errors are not: the
// engine never retries a failed hook on its own.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	default:
		return false
	}
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// walk visits every *Error in err's tree, following both single and
// multi-error (errors.Join) unwrapping. visit returns false to stop.
func walk(err error, visit func(*Error) bool) bool {
	if err == nil {
		return true
	}
	if e, ok := err.(*Error); ok {
		if !visit(e) {
			return false
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if !walk(inner, visit) {
				return false
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	}
	return true
}
