package cli

import "errors"

// Process exit codes.
const (
	ExitOK               = 0
	ExitInvalidArguments = 1
	ExitRuntime          = 2
)

// ExitError carries the process exit code for err.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func invalidArguments(err error) error {
	return &ExitError{Code: ExitInvalidArguments, Err: err}
}

func runtimeError(err error) error {
	return &ExitError{Code: ExitRuntime, Err: err}
}

// ExitCode maps an error returned by the root command to an exit code.
// Errors without an explicit code come from flag parsing.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitInvalidArguments
}
