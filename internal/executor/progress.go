package executor

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/sisyphus-worker/internal/status"
)

// Matcher extracts the current position from one output line. total is the
// denominator the monitor was created with, so percentage matchers can scale.
type Matcher interface {
	Match(line string, total int64) (int64, bool)
}

var framePattern = regexp.MustCompile(`frame=\s*(\d+)`)

// FrameMatcher reads ffmpeg-style "frame=N" counters.
type FrameMatcher struct{}

func (FrameMatcher) Match(line string, _ int64) (int64, bool) {
	m := framePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PercentMatcher reads a 0-100 percentage from the first capture group.
type PercentMatcher struct {
	re *regexp.Regexp
}

// NewPercentMatcher compiles pattern, which must have one capture group.
func NewPercentMatcher(pattern string) PercentMatcher {
	return PercentMatcher{re: regexp.MustCompile(pattern)}
}

func (p PercentMatcher) Match(line string, total int64) (int64, bool) {
	m := p.re.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if total <= 0 {
		total = 100
	}
	return int64(pct / 100 * float64(total)), true
}

// Monitor turns matched lines into monotonic progress records.
type Monitor struct {
	mu      sync.Mutex
	matcher Matcher
	total   int64
	current int64
	seen    bool
	publish func(status.Progress)
}

// NewMonitor creates a monitor. total <= 0 means the denominator is unknown:
// positions are reported unclamped with a zero percentage.
func NewMonitor(matcher Matcher, total int64, publish func(status.Progress)) *Monitor {
	return &Monitor{matcher: matcher, total: total, publish: publish}
}

// Observe applies the matcher to line and publishes when it advances progress.
// A position below the last one is ignored.
func (m *Monitor) Observe(line string) bool {
	pos, ok := m.matcher.Match(line, m.total)
	if !ok {
		return false
	}

	m.mu.Lock()
	if m.total > 0 && pos > m.total {
		pos = m.total
	}
	if pos < 0 || (m.seen && pos < m.current) {
		m.mu.Unlock()
		return false
	}
	m.current = pos
	m.seen = true
	p := status.NewProgress(pos, m.total)
	m.mu.Unlock()

	if m.publish != nil {
		m.publish(p)
	}
	return true
}

// Current returns the last published position.
func (m *Monitor) Current() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Total returns the denominator.
func (m *Monitor) Total() int64 {
	return m.total
}
