package core

import (
	"errors"
	"fmt"

	"github.com/mikey-austin/mtogo/pkg/spark"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitRuntime  = 1
	ExitUsage    = 2
	ExitNotFound = 4
)

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForResponse maps a wire error to a CLI error.
func ErrorForResponse(werr *spark.Error) *CLIError {
	switch werr.Kind {
	case spark.DeserializingCommand:
		return &CLIError{Code: ExitUsage, Msg: werr.Detail, Err: werr}
	case spark.RequestFailed:
		if werr.NotFound() {
			return &CLIError{Code: ExitNotFound, Msg: werr.Detail, Err: werr}
		}
		return &CLIError{Code: ExitRuntime, Msg: werr.Detail, Err: werr}
	default:
		return &CLIError{Code: ExitRuntime, Msg: string(werr.Kind), Err: werr}
	}
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitRuntime
}
