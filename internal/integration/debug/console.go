package debug

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// OutputType is the category of a debug console line.
type OutputType string

// Console line categories.
const (
	OutputStdout OutputType = "stdout"
	OutputStderr OutputType = "stderr"
	OutputResult OutputType = "result"
	OutputInput  OutputType = "input"
)

// OutputEntry is one line of the debug console.
type OutputEntry struct {
	Type      OutputType
	Text      string
	Timestamp time.Time
}

// DefaultMaxOutputEntries is the default console capacity.
const DefaultMaxOutputEntries = 10000

// console is an append-only log with FIFO eviction once max is reached.
// Evicted lines stay in front of start until the prefix grows to max, then
// the live lines are moved down in one copy.
type console struct {
	entries []OutputEntry
	start   int
	max     int
}

func (l *console) append(e OutputEntry) {
	l.entries = append(l.entries, e)
	if l.max <= 0 || len(l.entries)-l.start <= l.max {
		return
	}
	l.entries[l.start] = OutputEntry{}
	l.start++
	if l.start >= l.max {
		n := copy(l.entries, l.entries[l.start:])
		for i := n; i < len(l.entries); i++ {
			l.entries[i] = OutputEntry{}
		}
		l.entries = l.entries[:n]
		l.start = 0
	}
}

// lines returns the live lines, oldest first.
func (l *console) lines() []OutputEntry {
	return l.entries[l.start:]
}

func (l *console) clear() {
	l.entries = nil
	l.start = 0
}

// AddDebugOutput appends a console line stamped with the coordinator clock.
// When the console is full the oldest line is evicted.
func (c *Coordinator) AddDebugOutput(typ OutputType, text string) {
	c.console.append(OutputEntry{Type: typ, Text: text, Timestamp: c.now()})
	c.notify(Change{Kind: ChangeOutput})
}

// ClearDebugOutput empties the console.
func (c *Coordinator) ClearDebugOutput() {
	c.console.clear()
	c.notify(Change{Kind: ChangeOutput})
}

// DebugOutput returns a copy of the console in chronological order.
func (c *Coordinator) DebugOutput() []OutputEntry {
	return append([]OutputEntry(nil), c.console.lines()...)
}

// SearchOption names one toggle of SearchOptions.
type SearchOption int

const (
	// CaseSensitive matches letter case exactly.
	CaseSensitive SearchOption = iota
	// WholeWord requires matches to start and end on word boundaries.
	WholeWord
	// UseRegex treats the query as a regular expression.
	UseRegex
)

// String returns the option name.
func (o SearchOption) String() string {
	switch o {
	case CaseSensitive:
		return "caseSensitive"
	case WholeWord:
		return "wholeWord"
	case UseRegex:
		return "useRegex"
	default:
		return "unknown"
	}
}

// SearchOptions controls how FilterDebugOutput matches lines.
type SearchOptions struct {
	CaseSensitive bool
	WholeWord     bool
	UseRegex      bool
}

// Toggle flips the named option.
func (o *SearchOptions) Toggle(opt SearchOption) {
	switch opt {
	case CaseSensitive:
		o.CaseSensitive = !o.CaseSensitive
	case WholeWord:
		o.WholeWord = !o.WholeWord
	case UseRegex:
		o.UseRegex = !o.UseRegex
	}
}

// Enabled reports whether the named option is on.
func (o SearchOptions) Enabled(opt SearchOption) bool {
	switch opt {
	case CaseSensitive:
		return o.CaseSensitive
	case WholeWord:
		return o.WholeWord
	case UseRegex:
		return o.UseRegex
	default:
		return false
	}
}

// compile builds a matcher for query.
func (o SearchOptions) compile(query string) (*regexp.Regexp, error) {
	pattern := query
	if !o.UseRegex {
		pattern = regexp.QuoteMeta(query)
	}
	if o.WholeWord {
		pattern = `\b(?:` + pattern + `)\b`
	}
	if !o.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid search pattern %q: %w", query, err)
	}
	return re, nil
}

// FilterDebugOutput returns the console lines matching query. An empty query
// matches every line.
func (c *Coordinator) FilterDebugOutput(query string, opts SearchOptions) ([]OutputEntry, error) {
	if query == "" {
		return c.DebugOutput(), nil
	}
	if !opts.UseRegex && !opts.WholeWord {
		return c.filterPlain(query, opts.CaseSensitive), nil
	}

	re, err := opts.compile(query)
	if err != nil {
		return nil, err
	}
	var result []OutputEntry
	for _, e := range c.console.lines() {
		if re.MatchString(e.Text) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (c *Coordinator) filterPlain(query string, caseSensitive bool) []OutputEntry {
	if !caseSensitive {
		query = strings.ToLower(query)
	}
	var result []OutputEntry
	for _, e := range c.console.lines() {
		text := e.Text
		if !caseSensitive {
			text = strings.ToLower(text)
		}
		if strings.Contains(text, query) {
			result = append(result, e)
		}
	}
	return result
}
