package debug

import "fmt"

// State represents the debug session state.
type State int

const (
	// StateIdle means no session is active.
	StateIdle State = iota
	// StateStarting is after a launch request, before the program runs.
	StateStarting
	// StateRunning is when the debuggee is executing.
	StateRunning
	// StatePaused is when the debuggee is suspended.
	StatePaused
	// StateStopped is when the debuggee exited or the adapter disconnected.
	StateStopped
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ParseState parses the string form of a state.
func ParseState(s string) (State, error) {
	switch s {
	case "idle":
		return StateIdle, nil
	case "starting":
		return StateStarting, nil
	case "running":
		return StateRunning, nil
	case "paused":
		return StatePaused, nil
	case "stopped":
		return StateStopped, nil
	default:
		return StateIdle, fmt.Errorf("unknown debug state %q", s)
	}
}

// PauseReason describes why the debuggee paused.
type PauseReason string

// Pause reasons. The zero value means no reason is known.
const (
	PauseReasonNone       PauseReason = ""
	PauseReasonBreakpoint PauseReason = "breakpoint"
	PauseReasonStep       PauseReason = "step"
	PauseReasonPause      PauseReason = "pause"
	PauseReasonEntry      PauseReason = "entry"
	PauseReasonException  PauseReason = "exception"
)

// Location is a position in a source file.
type Location struct {
	FilePath string
	Line     int
	Column   int
}

// String returns a formatted location like "main.go:42:3".
func (l Location) String() string {
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.FilePath, l.Line)
}

// stateUpdate collects the optional parts of a state transition.
type stateUpdate struct {
	reason   PauseReason
	location *Location
}

// StateOption configures a SetDebugState call.
type StateOption func(*stateUpdate)

// WithPauseReason sets the pause reason. Ignored unless the new state is paused.
func WithPauseReason(reason PauseReason) StateOption {
	return func(u *stateUpdate) {
		u.reason = reason
	}
}

// WithPauseLocation sets the pause location. Ignored unless the new state is paused.
func WithPauseLocation(loc Location) StateOption {
	return func(u *stateUpdate) {
		u.location = &loc
	}
}

// SetDebugState is the only mutator of the session state. It does not
// validate the transition graph.
//
// Leaving paused clears the pause reason and location. Moving to a state
// other than paused or running also discards the call stack, frame
// selection, local variables and expanded children.
func (c *Coordinator) SetDebugState(state State, opts ...StateOption) {
	var u stateUpdate
	for _, opt := range opts {
		opt(&u)
	}

	old := c.state
	c.state = state

	if state == StatePaused {
		c.pauseReason = u.reason
		if u.location != nil {
			loc := *u.location
			c.pauseLocation = &loc
		} else {
			c.pauseLocation = nil
		}
	} else {
		c.pauseReason = PauseReasonNone
		c.pauseLocation = nil
	}

	if state != StatePaused {
		// Variable references are only valid while suspended.
		c.children.Purge()
	}
	if state != StatePaused && state != StateRunning {
		c.clearFrames()
	}

	c.log.WithField("from", old).WithField("to", state).Debug("debug state changed")
	c.notify(Change{Kind: ChangeState})
}

// BeginSession records the program being debugged and enters starting.
func (c *Coordinator) BeginSession(filePath string) {
	c.debugFilePath = filePath
	c.SetDebugState(StateStarting)
}

// ResetDebugSession returns to idle and clears all session-scoped data.
// Breakpoints and watch expressions are left exactly as they are.
func (c *Coordinator) ResetDebugSession() {
	c.state = StateIdle
	c.pauseReason = PauseReasonNone
	c.pauseLocation = nil
	c.debugFilePath = ""
	c.clearFrames()
	c.children.Purge()
	c.watchResults = make(map[string]WatchResult)
	c.console.clear()

	c.log.Debug("debug session reset")
	c.notify(Change{Kind: ChangeReset})
}

// State returns the current debug state.
func (c *Coordinator) State() State {
	return c.state
}

// PauseReason returns the pause reason. It is empty unless paused.
func (c *Coordinator) PauseReason() PauseReason {
	return c.pauseReason
}

// PauseLocation returns where the debuggee is paused. The second result is
// false when not paused or when the adapter did not report a location.
func (c *Coordinator) PauseLocation() (Location, bool) {
	if c.pauseLocation == nil {
		return Location{}, false
	}
	return *c.pauseLocation, true
}

// IsDebugging returns true while a session is starting, running or paused.
func (c *Coordinator) IsDebugging() bool {
	switch c.state {
	case StateStarting, StateRunning, StatePaused:
		return true
	default:
		return false
	}
}

// IsPaused returns true if the debuggee is paused.
func (c *Coordinator) IsPaused() bool {
	return c.state == StatePaused
}

// DebugFilePath returns the program recorded by BeginSession.
func (c *Coordinator) DebugFilePath() string {
	return c.debugFilePath
}
