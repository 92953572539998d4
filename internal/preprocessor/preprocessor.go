package preprocessor

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/fwessels/linepp/internal/expr"

	"github.com/sirupsen/logrus"
)

const commentMarker = "//"

const (
	dirIf      = "#if "
	dirElseIf  = "#elseif "
	dirElse    = "#else"
	dirEndIf   = "#endif"
	dirInclude = "#include "
)

// ---------------- Context ----------------

// Context holds the macro table and include resolver used by Process.
// A Context must not be used by more than one Process call at a time.
type Context struct {
	// KeepComments emits text lines as read. By default everything from the
	// first "//" up to the line terminator is dropped.
	KeepComments bool
	// MaxIncludeDepth bounds the number of nested #include streams.
	// Zero means unlimited.
	MaxIncludeDepth int
	Log             logrus.FieldLogger

	macros   map[string]string
	includes Includes
}

// New returns a Context that rejects #include.
func New() *Context {
	return NewWith(NoIncludes{})
}

func NewWith(includes Includes) *Context {
	if includes == nil {
		includes = NoIncludes{}
	}
	return &Context{
		macros:   map[string]string{},
		includes: includes,
	}
}

// Define sets name to value, replacing any previous definition. It panics
// if name is not an identifier.
func (c *Context) Define(name, value string) {
	if !ValidName(name) {
		panic(fmt.Sprintf("preprocessor: invalid macro name %q", name))
	}
	c.macros[name] = value
}

func (c *Context) Undefine(name string) {
	delete(c.macros, name)
}

func (c *Context) Lookup(name string) (string, bool) {
	v, ok := c.macros[name]
	return v, ok
}

// Macros returns a copy of the macro table.
func (c *Context) Macros() map[string]string {
	return maps.Clone(c.macros)
}

// Clone returns a Context with a copy of the macro table sharing the same
// resolver and logger.
func (c *Context) Clone() *Context {
	cl := *c
	cl.macros = maps.Clone(c.macros)
	return &cl
}

func (c *Context) Includes() Includes { return c.includes }

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (c *Context) logger() logrus.FieldLogger {
	if c.Log == nil {
		return discardLogger
	}
	return c.Log
}

// Substitute applies the macro table to s.
func (c *Context) Substitute(s string) string {
	return substitute(c.macros, s)
}

// ---------------- Processing ----------------

// Process preprocesses r and returns the expanded text. Nothing is returned
// on error; the first error aborts the whole run.
func (c *Context) Process(r io.Reader) (string, error) {
	st := &parseState{ctx: c, log: c.logger()}
	if err := st.process(r, "", readerName(r)); err != nil {
		return "", err
	}
	return st.out.String(), nil
}

func (c *Context) ProcessString(s string) (string, error) {
	return c.Process(strings.NewReader(s))
}

type parseState struct {
	ctx   *Context
	log   logrus.FieldLogger
	out   strings.Builder
	cond  condStack
	depth int
}

// process handles one stream. Frames at or below base belong to enclosing
// streams and cannot be touched from here. path is the name errors report,
// from the name relative includes are resolved against.
func (st *parseState) process(r io.Reader, path, from string) error {
	lr := newLineReader(r)
	base := st.cond.Depth()

	for lineNo := 1; ; lineNo++ {
		line, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &Error{Kind: ErrIO, Reason: "reading input", Path: path, Line: lineNo, Err: err}
		}
		if err := st.processLine(line, path, from, lineNo, base); err != nil {
			return err
		}
	}

	if top := st.cond.Top(base); top != nil {
		return &Error{Kind: ErrUnclosedIf, Reason: "couldn't find matching #endif", Path: path, Line: top.line}
	}
	return nil
}

func (st *parseState) processLine(line, path, from string, lineNo, base int) error {
	unexpected := func(reason string) error {
		return &Error{Kind: ErrUnexpectedDirective, Reason: reason, Path: path, Line: lineNo}
	}

	cmd := strings.TrimSpace(stripLineComment(line))
	switch {
	case strings.HasPrefix(cmd, dirIf):
		if !st.cond.Active() {
			st.cond.Push(condFrame{kind: blockInactiveIf, line: lineNo})
			return nil
		}
		ok, err := st.eval(cmd[len(dirIf):], path, lineNo)
		if err != nil {
			return err
		}
		status := branchNotYet
		if ok {
			status = branchNow
		}
		st.cond.Push(condFrame{kind: blockIf, status: status, line: lineNo})

	case strings.HasPrefix(cmd, dirElseIf):
		top := st.cond.Top(base)
		switch {
		case top == nil:
			return unexpected("unexpected #elseif")
		case top.kind == blockInactiveIf:
		case top.kind == blockIf && top.status == branchNotYet:
			ok, err := st.eval(cmd[len(dirElseIf):], path, lineNo)
			if err != nil {
				return err
			}
			if ok {
				top.status = branchNow
			}
		case top.kind == blockIf:
			top.status = branchAlready
		default:
			return unexpected("unexpected #elseif")
		}

	case cmd == dirElse:
		top := st.cond.Top(base)
		switch {
		case top == nil:
			return unexpected("unexpected #else")
		case top.kind == blockInactiveIf:
		case top.kind == blockIf:
			*top = condFrame{kind: blockElse, active: top.status == branchNotYet, line: top.line}
		default:
			return unexpected("unexpected #else")
		}

	case cmd == dirEndIf:
		if st.cond.Top(base) == nil {
			return unexpected("unexpected #endif")
		}
		st.cond.Pop()

	case strings.HasPrefix(cmd, dirInclude):
		if !st.cond.Active() {
			return nil
		}
		return st.include(strings.TrimSpace(cmd[len(dirInclude):]), line, path, from, lineNo)

	default:
		if st.cond.Active() {
			st.emit(line)
		}
	}
	return nil
}

func (st *parseState) eval(cond, path string, lineNo int) (bool, error) {
	ok, err := expr.Eval(substitute(st.ctx.macros, cond))
	if err != nil {
		reason := err.Error()
		var se *expr.SyntaxError
		if errors.As(err, &se) {
			reason = se.Reason
		}
		return false, &Error{Kind: ErrBadExpr, Reason: reason, Path: path, Line: lineNo, Err: err}
	}
	return ok, nil
}

func (st *parseState) emit(line string) {
	if !st.ctx.KeepComments {
		if i := strings.Index(line, commentMarker); i >= 0 {
			line = line[:i] + lineEnding(line)
		}
	}
	st.out.WriteString(substitute(st.ctx.macros, line))
}

// include splices the processed content of target in place of the directive
// line, followed by the directive line's own terminator.
func (st *parseState) include(target, line, path, from string, lineNo int) error {
	fail := func(err error) error {
		return &Error{Kind: ErrInclude, Reason: fmt.Sprintf("%q", target), Path: path, Line: lineNo, Err: err}
	}
	if limit := st.ctx.MaxIncludeDepth; limit > 0 && st.depth >= limit {
		return fail(ErrIncludeDepth)
	}

	var r io.Reader
	var err error
	if rel, ok := st.ctx.includes.(RelativeIncludes); ok {
		r, err = rel.FindContentFrom(from, target)
	} else {
		r, err = st.ctx.includes.FindContent(target)
	}
	if err != nil {
		return fail(err)
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	if r == nil {
		r = strings.NewReader("")
	}

	st.depth++
	log := st.log.WithFields(logrus.Fields{"path": target, "depth": st.depth})
	log.Debug("entering include")

	st.cond.Push(condFrame{kind: blockIncludeBoundary, line: lineNo})
	err = st.process(r, target, readerName(r))
	st.depth--
	if err != nil {
		return err
	}
	st.cond.Pop()

	log.Debug("leaving include")
	st.out.WriteString(lineEnding(line))
	return nil
}
