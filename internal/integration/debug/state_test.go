package debug

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StatePaused, "paused"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
		if tt.expected == "unknown" {
			continue
		}
		parsed, err := ParseState(tt.expected)
		if err != nil || parsed != tt.state {
			t.Errorf("ParseState(%q) = %v, %v", tt.expected, parsed, err)
		}
	}

	if _, err := ParseState("bogus"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestCoordinator_InitialState(t *testing.T) {
	c := newTestCoordinator()

	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
	if c.IsDebugging() || c.IsPaused() {
		t.Error("expected not debugging")
	}
	if c.PauseReason() != PauseReasonNone {
		t.Errorf("expected no pause reason, got %q", c.PauseReason())
	}
}

func TestCoordinator_SetDebugStatePaused(t *testing.T) {
	c := newTestCoordinator()
	loc := Location{FilePath: "/src/main.go", Line: 12}

	c.SetDebugState(StatePaused, WithPauseReason(PauseReasonBreakpoint), WithPauseLocation(loc))

	if !c.IsPaused() || !c.IsDebugging() {
		t.Error("expected paused and debugging")
	}
	if c.PauseReason() != PauseReasonBreakpoint {
		t.Errorf("expected breakpoint reason, got %q", c.PauseReason())
	}
	got, ok := c.PauseLocation()
	if !ok || got != loc {
		t.Errorf("expected location %v, got %v", loc, got)
	}
}

func TestCoordinator_PauseDataClearedWhenNotPaused(t *testing.T) {
	for _, next := range []State{StateRunning, StateStopped, StateIdle, StateStarting} {
		t.Run(next.String(), func(t *testing.T) {
			c := newTestCoordinator()
			c.SetDebugState(StatePaused, WithPauseReason(PauseReasonStep),
				WithPauseLocation(Location{FilePath: "/a.go", Line: 1}))

			c.SetDebugState(next, WithPauseReason(PauseReasonStep))

			if c.PauseReason() != PauseReasonNone {
				t.Errorf("expected empty pause reason in %s, got %q", next, c.PauseReason())
			}
			if _, ok := c.PauseLocation(); ok {
				t.Errorf("expected no pause location in %s", next)
			}
		})
	}
}

func TestCoordinator_PausedWithoutLocation(t *testing.T) {
	c := newTestCoordinator()
	c.SetDebugState(StatePaused, WithPauseReason(PauseReasonPause),
		WithPauseLocation(Location{FilePath: "/a.go", Line: 3}))
	c.SetDebugState(StatePaused, WithPauseReason(PauseReasonException))

	if c.PauseReason() != PauseReasonException {
		t.Errorf("expected exception reason, got %q", c.PauseReason())
	}
	if _, ok := c.PauseLocation(); ok {
		t.Error("expected location cleared when the new pause has none")
	}
}

func TestCoordinator_StoppedClearsFrames(t *testing.T) {
	c := newTestCoordinator()
	c.SetDebugState(StatePaused)
	c.SetCallStack(testFrames())
	c.SetLocalVariables([]Variable{{Name: "x"}})

	c.SetDebugState(StateStopped)

	if len(c.CallStack()) != 0 {
		t.Error("expected call stack cleared")
	}
	if _, ok := c.CurrentFrameID(); ok {
		t.Error("expected no frame selection")
	}
	if len(c.LocalVariables()) != 0 {
		t.Error("expected locals cleared")
	}
	if c.IsDebugging() {
		t.Error("expected stopped not to count as debugging")
	}
}

func TestCoordinator_BeginSession(t *testing.T) {
	c := newTestCoordinator()
	c.BeginSession("/src/main.go")

	if c.State() != StateStarting {
		t.Errorf("expected starting, got %s", c.State())
	}
	if c.DebugFilePath() != "/src/main.go" {
		t.Errorf("unexpected debug file path %q", c.DebugFilePath())
	}
	if !c.IsDebugging() {
		t.Error("expected starting to count as debugging")
	}
}

func TestCoordinator_ResetDebugSession(t *testing.T) {
	c := newTestCoordinator()
	bp := c.AddBreakpoint("/a.go", 10, BreakpointOptions{Condition: "x"})
	c.SetBreakpointVerified("/a.go", 10, true, 0)
	c.AddWatchExpression("x")

	c.BeginSession("/src/main.go")
	c.SetDebugState(StatePaused, WithPauseReason(PauseReasonBreakpoint),
		WithPauseLocation(Location{FilePath: "/a.go", Line: 10}))
	c.SetCallStack(testFrames())
	c.SetLocalVariables([]Variable{{Name: "x", Value: "1"}})
	c.SetChildVariables(9, []Variable{{Name: "c"}})
	c.SetWatchResult("x", "1", "")
	c.AddDebugOutput(OutputStdout, "hello")

	c.ResetDebugSession()

	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
	if c.PauseReason() != PauseReasonNone {
		t.Error("expected pause reason cleared")
	}
	if _, ok := c.PauseLocation(); ok {
		t.Error("expected pause location cleared")
	}
	if c.DebugFilePath() != "" {
		t.Error("expected debug file path cleared")
	}
	if len(c.CallStack()) != 0 || len(c.LocalVariables()) != 0 {
		t.Error("expected stack and locals cleared")
	}
	if _, ok := c.CurrentFrameID(); ok {
		t.Error("expected frame selection cleared")
	}
	if _, ok := c.ChildVariables(9); ok {
		t.Error("expected children cleared")
	}
	if len(c.WatchResults()) != 0 {
		t.Error("expected watch results cleared")
	}
	if len(c.DebugOutput()) != 0 {
		t.Error("expected console cleared")
	}

	got, ok := c.BreakpointByID(bp.ID)
	if !ok {
		t.Fatal("expected breakpoint kept")
	}
	if got.Line != 10 || got.Condition != "x" || !got.Verified {
		t.Errorf("expected breakpoint unchanged, got %+v", got)
	}
	if w := c.WatchExpressions(); len(w) != 1 || w[0] != "x" {
		t.Errorf("expected watch expressions kept, got %q", w)
	}
}

func TestCoordinator_StateNotifications(t *testing.T) {
	c := newTestCoordinator()
	var kinds []ChangeKind
	sub := c.Subscribe(func(ch Change) { kinds = append(kinds, ch.Kind) })

	c.SetDebugState(StateRunning)
	c.ResetDebugSession()
	sub.Unsubscribe()
	c.SetDebugState(StateRunning)

	if len(kinds) != 2 || kinds[0] != ChangeState || kinds[1] != ChangeReset {
		t.Errorf("unexpected notifications %v", kinds)
	}
}
