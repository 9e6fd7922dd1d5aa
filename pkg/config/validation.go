package config

import (
	"reflect"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// Validator is implemented by configuration structs with cross-field
// rules. [Loader.Load] calls Validate after every required field has been
// checked. Errors that are already [*sserr.Error] are returned as-is;
// others are wrapped with [sserr.CodeValidation].
//
// Example:
//
//	func (c *HostConfig) Validate() error {
//	    if !slices.Contains(c.States, c.Initial) {
//	        return sserr.Validationf("config: initial state %q is not enabled", c.Initial)
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if err := eachField(rv, "", "", checkRequired); err != nil {
		return err
	}

	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if _, isSSErr := sserr.AsError(err); isSSErr {
			return err
		}
		return sserr.Wrap(err, sserr.CodeValidation, "config: custom validation failed")
	}
	return nil
}

func checkRequired(f field) error {
	if f.tag.Get("required") == "true" && f.value.IsZero() {
		return sserr.Newf(sserr.CodeValidationRequired,
			"config: required field %q is empty", f.path)
	}
	return nil
}
