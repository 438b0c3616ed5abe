package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/debugstate/internal/integration/debug"
)

// parseLocation parses "file:line". Relative paths are made absolute so
// they match the paths reported by the adapter.
func parseLocation(arg string) (string, int, error) {
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 || i == len(arg)-1 {
		return "", 0, fmt.Errorf("invalid location %q: expected file:line", arg)
	}
	line, err := strconv.Atoi(arg[i+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("invalid line in %q", arg)
	}
	path, err := filepath.Abs(arg[:i])
	if err != nil {
		return "", 0, err
	}
	return path, line, nil
}

// pauseSnapshot is the part of the coordinator printed at each stop.
type pauseSnapshot struct {
	reason   debug.PauseReason
	location debug.Location
	hasLoc   bool
	frames   []debug.StackFrame
	locals   []debug.Variable
	watches  []string
	results  map[string]debug.WatchResult
}

func takePauseSnapshot(c *debug.Coordinator) pauseSnapshot {
	loc, ok := c.PauseLocation()
	return pauseSnapshot{
		reason:   c.PauseReason(),
		location: loc,
		hasLoc:   ok,
		frames:   c.CallStack(),
		locals:   c.LocalVariables(),
		watches:  c.WatchExpressions(),
		results:  c.WatchResults(),
	}
}

func writePause(w io.Writer, s pauseSnapshot) {
	reason := string(s.reason)
	if reason == "" {
		reason = "unknown"
	}
	if s.hasLoc {
		fmt.Fprintf(w, "> paused (%s) at %s\n", reason, s.location)
	} else {
		fmt.Fprintf(w, "> paused (%s)\n", reason)
	}

	if len(s.frames) > 0 {
		fmt.Fprintln(w, "  stack:")
		for i, f := range s.frames {
			fmt.Fprintf(w, "    %d  %s  %s\n", i, f.Name, f.FormatLocation())
		}
	}
	if len(s.locals) > 0 {
		fmt.Fprintln(w, "  locals:")
		for _, v := range s.locals {
			if v.Type != "" {
				fmt.Fprintf(w, "    %s %s = %s\n", v.Name, v.Type, v.Value)
			} else {
				fmt.Fprintf(w, "    %s = %s\n", v.Name, v.Value)
			}
		}
	}
	if len(s.watches) > 0 {
		fmt.Fprintln(w, "  watches:")
		for _, expr := range s.watches {
			r, ok := s.results[expr]
			if !ok {
				fmt.Fprintf(w, "    %s = <not evaluated>\n", expr)
				continue
			}
			fmt.Fprintf(w, "    %s = %s\n", expr, r)
		}
	}
}

func writeBreakpoints(w io.Writer, all map[string][]debug.Breakpoint) {
	if len(all) == 0 {
		fmt.Fprintln(w, "no breakpoints")
		return
	}
	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		for _, bp := range all[p] {
			writeBreakpoint(w, bp)
		}
	}
}

func writeBreakpoint(w io.Writer, bp debug.Breakpoint) {
	mark := "x"
	if !bp.Enabled {
		mark = " "
	}
	var extra []string
	if bp.Condition != "" {
		extra = append(extra, "if "+bp.Condition)
	}
	if bp.HitCondition != "" {
		extra = append(extra, "hit "+bp.HitCondition)
	}
	if bp.IsLogPoint() {
		extra = append(extra, "log "+strconv.Quote(bp.LogMessage))
	}
	line := fmt.Sprintf("[%s] %s:%d", mark, bp.FilePath, bp.Line)
	if len(extra) > 0 {
		line += "  (" + strings.Join(extra, ", ") + ")"
	}
	fmt.Fprintln(w, line)
}

func writeOutput(w io.Writer, e debug.OutputEntry) {
	text := strings.TrimRight(e.Text, "\n")
	switch e.Type {
	case debug.OutputStderr:
		fmt.Fprintf(w, "[stderr] %s\n", text)
	case debug.OutputResult:
		fmt.Fprintf(w, "= %s\n", text)
	default:
		fmt.Fprintln(w, text)
	}
}
