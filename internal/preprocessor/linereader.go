package preprocessor

import (
	"bufio"
	"io"
	"strings"
)

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

// next returns the next line including its terminator. The last line of a
// stream may have none. io.EOF is returned once the stream is drained.
func (lr *lineReader) next() (string, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if len(s) == 0 && err == io.EOF {
		return "", io.EOF
	}
	return s, nil
}

// lineEnding returns the "\r\n" or "\n" that terminates s, if any.
func lineEnding(s string) string {
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(s, "\n"):
		return "\n"
	default:
		return ""
	}
}

func stripLineComment(s string) string {
	if i := strings.Index(s, commentMarker); i >= 0 {
		return s[:i]
	}
	return s
}
