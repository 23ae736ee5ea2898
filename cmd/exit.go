package cmd

import (
	"errors"

	"imagestream/core"
	"imagestream/imagegen"
)

// ExitError carries an explicit process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return core.ExitCodeName(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func withExitCode(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps a command error to a process exit code. Invalid input that
// never reached the network exits with core.ExitCodeUsage.
func ExitCode(err error) int {
	if err == nil {
		return core.ExitCodeSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if _, ok := core.IsConfigError(err); ok {
		return core.ExitCodeUsage
	}
	if imagegen.IsValidationError(err) {
		return core.ExitCodeUsage
	}
	return core.ExitCodeError
}
