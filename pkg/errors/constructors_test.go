package errors

import (
	"errors"
	"testing"
)

func TestNewf(t *testing.T) {
	err := Newf(CodeUnknownState, "state %q is not registered", "pkg.Idle")

	if err.Code != CodeUnknownState {
		t.Errorf("Code = %v, want %v", err.Code, CodeUnknownState)
	}
	if err.Message != `state "pkg.Idle" is not registered` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Cause != nil {
		t.Error("Newf should not set a cause")
	}
}

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, CodeInternal, "ignored"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	if err := Wrapf(nil, CodeInternal, "ignored %d", 1); err != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", err)
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("cause")
	err := Wrapf(cause, CodeLifecycleHook, "%s hook failed", "end")

	if err.Message != "end hook failed" {
		t.Errorf("Message = %q, want %q", err.Message, "end hook failed")
	}
	if err.Cause != cause {
		t.Error("Wrapf should keep the cause")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want Code
	}{
		{"Configuration", Configuration("x"), CodeConfiguration},
		{"Configurationf", Configurationf("x %d", 1), CodeConfiguration},
		{"UnknownStatef", UnknownStatef("x %s", "y"), CodeUnknownState},
		{"Conflict", Conflict("x"), CodeConflict},
		{"Conflictf", Conflictf("x %s", "y"), CodeConflict},
		{"Validation", Validation("x"), CodeValidation},
		{"Validationf", Validationf("x %d", 2), CodeValidation},
		{"Internal", Internal("x"), CodeInternal},
		{"Timeout", Timeout("x"), CodeTimeout},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.want {
			t.Errorf("%s: Code = %v, want %v", tt.name, tt.err.Code, tt.want)
		}
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Error("FromError(nil) should be nil")
	}

	platformErr := New(CodeConflict, "already active")
	if got := FromError(platformErr); got != platformErr {
		t.Error("FromError should return an existing *Error unchanged")
	}

	got := FromError(errors.New("plain"))
	if got.Code != CodeInternal {
		t.Errorf("FromError(plain).Code = %v, want %v", got.Code, CodeInternal)
	}
}
