package executor

import (
	"bytes"
	"fmt"
	"io"
)

const (
	dimStart = "\033[2m"
	dimEnd   = "\033[0m"
)

// echoDimmed prints a line of process output greyed out, so encoder chatter stays
// visible without drowning the structured log lines.
func echoDimmed(w io.Writer, line string) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "%s  │ %s%s\n", dimStart, line, dimEnd)
}

// tail keeps the last n lines of output for error reports.
type tail struct {
	n     int
	lines []string
}

func newTail(n int) *tail {
	return &tail{n: n, lines: make([]string, 0, n)}
}

func (t *tail) add(line string) {
	if t.n <= 0 {
		return
	}
	if len(t.lines) == t.n {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.n-1]
	}
	t.lines = append(t.lines, line)
}

func (t *tail) snapshot() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// scanLines is bufio.ScanLines that also breaks on a bare '\r', which encoders use
// to redraw their progress line in place.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
