// Package diag defines the closed set of errors forge can raise while
// configuring a project, and the process-wide log sink that records
// diagnostics alongside persisted build state.
package diag

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Kind identifies one of the error categories in spec.md §7. The set is
// closed: callers never invent a new Kind outside this file.
type Kind int

const (
	LexError Kind = iota
	ParseError
	InvalidCode
	InvalidArguments
	DependencyError
	EnvironmentError
	InternalError
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "lex-error"
	case ParseError:
		return "parse-error"
	case InvalidCode:
		return "invalid-code"
	case InvalidArguments:
		return "invalid-arguments"
	case DependencyError:
		return "dependency-error"
	case EnvironmentError:
		return "environment-error"
	case InternalError:
		return "internal-error"
	default:
		return "unknown-error"
	}
}

// Pos is a source position: file, 1-based line and column, and a byte
// offset into the file (used by parser_test.go's monotonicity check).
type Pos struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is the single error type produced by every forge component.
// Errors never recover mid-statement (spec.md §4.7): once raised, an Error
// propagates unwrapped-by-anything-but-xerrors to the top-level driver.
type Error struct {
	Kind Kind
	Pos  Pos // zero value means "no source position known"
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	var pos string
	if e.Pos.File != "" || e.Pos.Line != 0 {
		pos = e.Pos.String() + ": "
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %s: %v", pos, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s%s: %s", pos, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the process exit code spec.md §7 mandates for this
// error's kind: 2 for internal errors, 1 for everything else.
func (e *Error) ExitCode() int {
	if e.Kind == InternalError {
		return 2
	}
	return 1
}

func New(kind Kind, pos Pos, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, pos Pos, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Internal constructs an internal-error: an invariant violation that
// valid user input can never trigger.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: InternalError, Msg: xerrors.Errorf(format, args...).Error()}
}
