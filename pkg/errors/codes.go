package errors

// Code represents a machine-readable error code. Codes follow the pattern
// CATEGORY_XXX where CATEGORY is a short identifier (e.g., CFG, HOOK) and
// XXX is a three-digit number. Codes never change once assigned.
type Code string

// Error code categories:
//
//	CFG_xxx     - Configuration errors (machine or state cannot be set up)
//	NF_xxx      - Not found errors (identity not registered, no snapshot)
//	HOOK_xxx    - Lifecycle hook errors (state hook failed or panicked)
//	CONF_xxx    - Conflict errors (operation invalid in the current state)
//	VAL_xxx     - Validation errors (configuration values)
//	INT_xxx     - Internal errors
//	UNAVAIL_xxx - Dependency unavailable
//	TIMEOUT_xxx - Operation exceeded its deadline
const (
	// CodeConfiguration indicates a general configuration failure.
	CodeConfiguration Code = "CFG_001"

	// CodeConfigurationOwner indicates the machine owner could not be
	// supplied or default-constructed.
	CodeConfigurationOwner Code = "CFG_002"

	// CodeConfigurationState indicates a nil or otherwise invalid state
	// was passed to registration.
	CodeConfigurationState Code = "CFG_003"

	// CodeConfigurationFile indicates a configuration source (file or
	// environment) could not be read or parsed.
	CodeConfigurationFile Code = "CFG_004"

	// CodeUnknownState indicates a start or transition target that is not
	// registered with the machine.
	CodeUnknownState Code = "NF_001"

	// CodeUnknownFactory indicates a catalog has no factory for an identity
	// or name.
	CodeUnknownFactory Code = "NF_002"

	// CodeSnapshotNotFound indicates no published snapshot exists for a
	// machine.
	CodeSnapshotNotFound Code = "NF_003"

	// CodeLifecycleHook indicates a state lifecycle hook returned an error.
	CodeLifecycleHook Code = "HOOK_001"

	// CodeLifecycleHookPanic indicates a state lifecycle hook panicked.
	CodeLifecycleHookPanic Code = "HOOK_002"

	// CodeConflict indicates an operation conflicts with the current state.
	CodeConflict Code = "CONF_001"

	// CodeConflictAlreadyExists indicates an entry already exists.
	CodeConflictAlreadyExists Code = "CONF_002"

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationRange indicates a value is outside its acceptable range.
	CodeValidationRange Code = "VAL_003"

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalStorage indicates a storage backend operation failed.
	CodeInternalStorage Code = "INT_002"

	// CodeUnavailable indicates a general unavailability.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeout indicates a general timeout.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutStorage indicates a storage backend operation timed out.
	CodeTimeoutStorage Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "CFG", "HOOK").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
