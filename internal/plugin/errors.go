package plugin

import "errors"

// Errors for registration, resolution, and execution.
//
// Registration and resolution errors (ErrValidation, ErrUnknownCategory,
// ErrDuplicatePlugin, ErrCycle) are fatal to the call that raised them.
// ErrDependency, ErrHookTimeout, and non-critical ErrExecution are captured
// into per-plugin or per-hook results and never abort sibling execution.
var (
	ErrValidation      = errors.New("invalid plugin descriptor")
	ErrUnknownCategory = errors.New("unknown plugin category")
	ErrDuplicatePlugin = errors.New("plugin already registered")
	ErrDependency      = errors.New("unmet plugin dependency")
	ErrCycle           = errors.New("dependency cycle")
	ErrHookTimeout     = errors.New("hook timed out")
	ErrExecution       = errors.New("plugin execution failed")
)
