package preprocessor

import (
	"errors"
	"io"
)

// Includes maps the argument of an #include line to its content. A returned
// reader that also implements io.Closer is closed once it has been processed.
type Includes interface {
	FindContent(path string) (io.Reader, error)
}

// RelativeIncludes is implemented by resolvers that look a path up next to
// the stream containing the #include line before anywhere else. from is the
// name of that stream, taken from its reader's Name method (as with
// *os.File), or "" when the reader has none.
type RelativeIncludes interface {
	Includes
	FindContentFrom(from, path string) (io.Reader, error)
}

// IncludesFunc adapts a function to the Includes interface.
type IncludesFunc func(path string) (io.Reader, error)

func (f IncludesFunc) FindContent(path string) (io.Reader, error) { return f(path) }

var ErrNotSupported = errors.New("#include is not supported")

// NoIncludes rejects every #include.
type NoIncludes struct{}

func (NoIncludes) FindContent(string) (io.Reader, error) { return nil, ErrNotSupported }

type named interface {
	Name() string
}

func readerName(r io.Reader) string {
	if n, ok := r.(named); ok {
		return n.Name()
	}
	return ""
}
