package preprocessor

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	ErrIO ErrorKind = iota + 1
	ErrBadExpr
	ErrUnexpectedDirective
	ErrInclude
	ErrUnclosedIf
)

func (k ErrorKind) String() string {
	switch k {
	case ErrIO:
		return "read error"
	case ErrBadExpr:
		return "bad expression"
	case ErrUnexpectedDirective:
		return "bad directive"
	case ErrInclude:
		return "include error"
	case ErrUnclosedIf:
		return "unclosed block"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ErrIncludeDepth is wrapped by an ErrInclude error when Context.MaxIncludeDepth
// nested includes are already open.
var ErrIncludeDepth = errors.New("include depth limit exceeded")

// Error is returned by Process. Path is the include path of the stream the
// error occurred in (empty for the top-level input) and Line is 1-based.
type Error struct {
	Kind   ErrorKind
	Reason string
	Path   string
	Line   int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Path != "" && e.Line > 0:
		fmt.Fprintf(&b, "%s:%d: ", e.Path, e.Line)
	case e.Path != "":
		fmt.Fprintf(&b, "%s: ", e.Path)
	case e.Line > 0:
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil && (e.Kind == ErrIO || e.Kind == ErrInclude) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
