package preprocessor

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/fwessels/linepp/internal/expr"

	"github.com/google/go-cmp/cmp"
)

func lines(a ...string) string {
	return strings.Join(a, "\n") + "\n"
}

func testContext(files map[string]string) *Context {
	ctx := NewWith(IncludesFunc(func(path string) (io.Reader, error) {
		s, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return strings.NewReader(s), nil
	}))
	ctx.Define("_TRUE", "1")
	ctx.Define("_FALSE", "0")
	ctx.Define("_OR", "||")
	ctx.Define("_AND", "&&")
	return ctx
}

var testFiles = map[string]string{
	"foo":      "line2",
	"crlf":     "one\r\ntwo",
	"guarded":  lines("#if 1", "inner", "#endif"),
	"outer":    lines("outer-start", "#include foo", "outer-end"),
	"macros":   "_TRUE _AND _FALSE",
	"stray":    lines("#endif"),
	"open":     lines("#if 1", "never closed"),
	"self":     "#include self\n",
	"badexpr":  lines("ok", "#if 1 &&", "#endif"),
	"elseonly": lines("#else"),
}

type processTest struct {
	name   string
	input  string
	output string
}

var processTests = []processTest{
	{
		"empty",
		"",
		"",
	},
	{
		"plain text",
		"#version 140",
		"#version 140",
	},
	{
		"macro condition",
		"#if _TRUE _OR _FALSE\nyes\n#else\nno\n#endif",
		"yes\n",
	},
	{
		"false block",
		"#if 0\nstuff\n#endif",
		"",
	},
	{
		"nested dead branches",
		"#if 1\n#if 0\n#if 1\nApple\n#endif\n#elseif 0\nBanana\n#else\nOrange\n#endif\n#endif",
		"Orange\n",
	},
	{
		"elseif chain",
		"#if _FALSE _AND _TRUE\nGoodbye\n#elseif _TRUE\nHello\n#else \nThe\n#endif\nWorld!",
		"Hello\nWorld!",
	},
	{
		"only first true branch",
		lines(
			"#if 0", "a",
			"#elseif 0", "b",
			"#elseif 1", "c",
			"#elseif 1", "d",
			"#else", "e",
			"#endif",
		),
		"c\n",
	},
	{
		"else after taken branch",
		lines("#if 1", "a", "#else", "b", "#endif"),
		"a\n",
	},
	{
		"dead elseif is not evaluated",
		lines("#if 1", "A", "#elseif garbage", "B", "#endif"),
		"A\n",
	},
	{
		"dead nested conditions are not evaluated",
		lines("#if 0", "#if garbage", "x", "#elseif junk", "#else", "#endif", "#endif", "ok"),
		"ok\n",
	},
	{
		"dead include is skipped",
		lines("#if 0", "#include missing", "#endif", "z"),
		"z\n",
	},
	{
		"text substitution",
		lines("_TRUE _OR _FALSE", "x_TRUE _TRUEx (_TRUE)"),
		"1 || 0\nx_TRUE _TRUEx (1)\n",
	},
	{
		"directive lookalikes pass through",
		lines("#ifdef X", "#if", "#elsewhere", "#endiff"),
		"#ifdef X\n#if\n#elsewhere\n#endiff\n",
	},
	{
		"comments are stripped from text",
		"foo // bar\n// whole line\nbaz//",
		"foo \n\nbaz",
	},
	{
		"comments do not hide directives",
		lines("#if 0 // disabled", "x", "#endif // done", "y"),
		"y\n",
	},
	{
		"comment hides condition",
		lines("#if 1 // && 0", "x", "#endif"),
		"x\n",
	},
	{
		"indented directives",
		lines("  #if 1", "\tx", "\t#endif  "),
		"\tx\n",
	},
	{
		"crlf text",
		"a\r\n#if 1\r\nb\r\n#endif\r\nc",
		"a\r\nb\r\nc",
	},
	{
		"include",
		"line1\n#include foo\nline3",
		"line1\nline2\nline3",
	},
	{
		"include keeps crlf of directive",
		"a\r\n#include crlf\r\nb",
		"a\r\none\r\ntwo\r\nb",
	},
	{
		"include at end of input",
		"a\n#include foo",
		"a\nline2",
	},
	{
		"include with balanced conditionals",
		lines("#include guarded", "after"),
		"inner\n\nafter\n",
	},
	{
		"nested include",
		lines("#include outer"),
		"outer-start\nline2\nouter-end\n\n",
	},
	{
		"include applies macros",
		lines("#include macros"),
		"1 && 0\n",
	},
	{
		"include inside active block",
		lines("#if 1", "#include foo", "#else", "no", "#endif"),
		"line2\n",
	},
}

func TestProcess(t *testing.T) {
	for _, tt := range processTests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testContext(testFiles).ProcessString(tt.input)
			if err != nil {
				t.Fatalf("process error: %v", err)
			}
			if diff := cmp.Diff(tt.output, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeepComments(t *testing.T) {
	ctx := testContext(nil)
	ctx.KeepComments = true
	got, err := ctx.ProcessString("see http://example.com // _TRUE\n#if 0 // x\nno\n#endif\n")
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if diff := cmp.Diff("see http://example.com // 1\n", got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

type badProcessTest struct {
	name   string
	input  string
	kind   ErrorKind
	reason string
	path   string
	line   int
}

var badProcessTests = []badProcessTest{
	{"extra endif", "#if 1\nstuff\n#endif\n#endif", ErrUnexpectedDirective, "unexpected #endif", "", 4},
	{"elseif after else", "#if 1\nabc\n#else\ndef\n#elseif 1\nghi\n#endif", ErrUnexpectedDirective, "unexpected #elseif", "", 5},
	{"else after else", "#if 0\n#else\n#else\n#endif", ErrUnexpectedDirective, "unexpected #else", "", 3},
	{"stray else", "#else", ErrUnexpectedDirective, "unexpected #else", "", 1},
	{"stray elseif", "text\n#elseif 1", ErrUnexpectedDirective, "unexpected #elseif", "", 2},
	{"unclosed if", "#if 1\nabc", ErrUnclosedIf, "couldn't find matching #endif", "", 1},
	{"unclosed nested if", "#if 1\n#if 0\n#endif", ErrUnclosedIf, "couldn't find matching #endif", "", 1},
	{"bad symbol", "#if 1 + 1\n#endif", ErrBadExpr, expr.ReasonUnexpectedSymbol, "", 1},
	{"undefined name", "#if 0 && x\n#endif", ErrBadExpr, expr.ReasonUnexpectedSymbol, "", 1},
	{"bad token", "#if 1\n#elseif\n#endif\n#if (1\n#endif", ErrBadExpr, expr.ReasonUnexpectedToken, "", 4},
	{"live elseif is evaluated", "#if 0\n#elseif oops\n#endif", ErrBadExpr, expr.ReasonUnexpectedSymbol, "", 2},
	{"missing include", "a\n#include nope", ErrInclude, `"nope"`, "", 2},
	{"endif inside include", lines("#if 1", "#include stray", "#endif"), ErrUnexpectedDirective, "unexpected #endif", "stray", 1},
	{"else inside include", lines("#if 1", "#include elseonly", "#endif"), ErrUnexpectedDirective, "unexpected #else", "elseonly", 1},
	{"unclosed if inside include", lines("#include open"), ErrUnclosedIf, "couldn't find matching #endif", "open", 1},
	{"bad expression inside include", lines("#include badexpr"), ErrBadExpr, expr.ReasonUnexpectedToken, "badexpr", 2},
}

func TestBadProcess(t *testing.T) {
	for _, tt := range badProcessTests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testContext(testFiles).ProcessString(tt.input)
			if err == nil {
				t.Fatalf("expected error, got output %q", got)
			}
			if got != "" {
				t.Errorf("expected no output on error, got %q", got)
			}
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if diff := cmp.Diff(tt.kind, pe.Kind); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.reason, pe.Reason); diff != "" {
				t.Errorf("reason mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.path, pe.Path); diff != "" {
				t.Errorf("path mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.line, pe.Line); diff != "" {
				t.Errorf("line mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNoIncludes(t *testing.T) {
	_, err := New().ProcessString("#include foo\n")
	if !IsKind(err, ErrInclude) {
		t.Fatalf("expected include error, got %v", err)
	}
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported to be wrapped, got %v", err)
	}
	if diff := cmp.Diff(`line 1: include error: "foo": #include is not supported`, err.Error()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeDepth(t *testing.T) {
	ctx := testContext(testFiles)
	ctx.MaxIncludeDepth = 3
	_, err := ctx.ProcessString("#include self\n")
	if !errors.Is(err, ErrIncludeDepth) {
		t.Fatalf("expected ErrIncludeDepth, got %v", err)
	}
	var pe *Error
	if errors.As(err, &pe) && pe.Path != "self" {
		t.Errorf("expected error inside %q, got %q", "self", pe.Path)
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestIncludeIsClosed(t *testing.T) {
	for _, tt := range []struct {
		content string
		fail    bool
	}{
		{"fine\n", false},
		{"#if 1\n", true},
	} {
		tracker := &closeTracker{Reader: strings.NewReader(tt.content)}
		ctx := NewWith(IncludesFunc(func(string) (io.Reader, error) { return tracker, nil }))
		_, err := ctx.ProcessString("#include x\n")
		if (err != nil) != tt.fail {
			t.Errorf("content %q: unexpected error state: %v", tt.content, err)
		}
		if !tracker.closed {
			t.Errorf("content %q: include reader was not closed", tt.content)
		}
	}
}

func TestReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New().Process(iotest.ErrReader(boom))
	if !IsKind(err, ErrIO) {
		t.Fatalf("expected read error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
}

func TestErrorString(t *testing.T) {
	for _, tt := range []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: ErrUnexpectedDirective, Reason: "unexpected #endif", Line: 4}, "line 4: bad directive: unexpected #endif"},
		{&Error{Kind: ErrUnclosedIf, Reason: "couldn't find matching #endif", Path: "a.glsl", Line: 2}, "a.glsl:2: unclosed block: couldn't find matching #endif"},
		{&Error{Kind: ErrBadExpr, Reason: "unexpected token", Err: &expr.SyntaxError{Reason: "unexpected token"}}, "bad expression: unexpected token"},
		{&Error{Kind: ErrIO, Reason: "reading input", Path: "x", Err: errors.New("boom")}, "x: read error: reading input: boom"},
	} {
		if diff := cmp.Diff(tt.want, tt.err.Error()); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDefine(t *testing.T) {
	ctx := New()
	ctx.Define("A", "1")
	ctx.Define("A", "2")
	ctx.Define("_b9", "x")
	if v, ok := ctx.Lookup("A"); !ok || v != "2" {
		t.Errorf("redefinition: got %q, %v", v, ok)
	}
	ctx.Undefine("_b9")
	if diff := cmp.Diff(map[string]string{"A": "2"}, ctx.Macros()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	clone := ctx.Clone()
	clone.Define("B", "3")
	if _, ok := ctx.Lookup("B"); ok {
		t.Errorf("clone shares macro table with original")
	}

	for _, name := range []string{"", "1A", "A-B", "A B", "é"} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Define(%q) did not panic", name)
				}
			}()
			ctx.Define(name, "x")
		}()
	}
}

func TestSubstitute(t *testing.T) {
	macros := map[string]string{"DEF1": "Hello", "DEF2": "World", "X": "DEF1"}
	for _, tt := range []struct {
		input  string
		output string
	}{
		{"DEF1 DEF2!", "Hello World!"},
		{"Hello DEF2s!", "Hello DEF2s!"},
		{"0DEF1", "0DEF1"},
		{"DEF1", "Hello"},
		{"(DEF1,DEF2)\n", "(Hello,World)\n"},
		{"X", "DEF1"},
		{"héDEF1é", "héHelloé"},
		{"", ""},
	} {
		if diff := cmp.Diff(tt.output, substitute(macros, tt.input)); diff != "" {
			t.Errorf("substitute(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

type namedReader struct {
	*strings.Reader
	name string
}

func (n namedReader) Name() string { return n.name }

// dirIncludes resolves a path against the directory of the including stream
// only, recording each lookup.
type dirIncludes struct {
	files   map[string]string
	lookups []string
}

func (d *dirIncludes) FindContent(path string) (io.Reader, error) {
	return d.FindContentFrom("", path)
}

func (d *dirIncludes) FindContentFrom(from, path string) (io.Reader, error) {
	d.lookups = append(d.lookups, from+" -> "+path)
	if i := strings.LastIndex(from, "/"); i >= 0 {
		path = from[:i+1] + path
	}
	s, ok := d.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return namedReader{strings.NewReader(s), path}, nil
}

func TestRelativeIncludes(t *testing.T) {
	inc := &dirIncludes{files: map[string]string{
		"src/lib/a.txt": lines("a", "#include b.txt"),
		"src/lib/b.txt": "b",
	}}
	ctx := NewWith(inc)
	got, err := ctx.Process(namedReader{strings.NewReader(lines("#include lib/a.txt", "main")), "src/main.txt"})
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if diff := cmp.Diff("a\nb\n\nmain\n", got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	want := []string{"src/main.txt -> lib/a.txt", "src/lib/a.txt -> b.txt"}
	if diff := cmp.Diff(want, inc.lookups); diff != "" {
		t.Errorf("lookups mismatch (-want +got):\n%s", diff)
	}
}
