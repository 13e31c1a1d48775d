package pipeline

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/leapstack-labs/gz/pkg/interp"
	"github.com/leapstack-labs/gz/pkg/parser"
)

// Exit codes, following the BSD sysexits convention. Codes from 64 up
// belong to gz; a program's own status is kept below them.
const (
	ExitOK       = 0
	ExitUsage    = 64
	ExitLex      = 65
	ExitSyntax   = 66
	ExitRuntime  = 70
	ExitInternal = 71
	ExitIO       = 74

	// MaxProgramStatus is the highest exit code a program's own status can
	// produce. Statuses outside 1..MaxProgramStatus exit with it.
	MaxProgramStatus = 63
)

// UsageError reports invalid command-line use.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// StatusError carries a non-zero exit status returned by the program
// itself. It is not a failure of gz.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string { return fmt.Sprintf("program exited with status %d", e.Status) }

// ExitCode maps an error to the process exit code for its category.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		status  *StatusError
		usage   *UsageError
		lexErr  *parser.LexError
		synErr  *parser.SyntaxError
		evalErr interp.Error
		pathErr *fs.PathError
	)
	switch {
	case errors.As(err, &status):
		return ProgramExitCode(status.Status)
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &lexErr):
		return ExitLex
	case errors.As(err, &synErr):
		return ExitSyntax
	case errors.As(err, &evalErr):
		return ExitRuntime
	case errors.As(err, &pathErr):
		return ExitIO
	default:
		return ExitInternal
	}
}

// ProgramExitCode maps a program's own status to a process exit code that
// cannot be mistaken for one of gz's failure codes.
func ProgramExitCode(status int) int {
	switch {
	case status == 0:
		return ExitOK
	case status < 0 || status > MaxProgramStatus:
		return MaxProgramStatus
	default:
		return status
	}
}
