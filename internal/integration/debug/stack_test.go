package debug

import "testing"

func testFrames() []StackFrame {
	return []StackFrame{
		{ID: 1, Name: "main.inner", FilePath: "/src/main.go", Line: 20, Column: 3},
		{ID: 2, Name: "main.outer", FilePath: "/src/main.go", Line: 10},
		{ID: 3, Name: "runtime.main"},
	}
}

func TestStackFrame_HasSource(t *testing.T) {
	tests := []struct {
		name     string
		frame    StackFrame
		expected bool
	}{
		{"with path", StackFrame{FilePath: "/src/main.go"}, true},
		{"no path", StackFrame{Name: "runtime.goexit"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.HasSource(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestStackFrame_FormatLocation(t *testing.T) {
	tests := []struct {
		name     string
		frame    StackFrame
		expected string
	}{
		{"with path", StackFrame{FilePath: "/src/main.go", Line: 42}, "/src/main.go:42"},
		{"no path", StackFrame{Line: 7}, "<unknown>:7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.FormatLocation(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStackFrame_Location(t *testing.T) {
	f := StackFrame{FilePath: "/src/main.go", Line: 4, Column: 9}
	loc := f.Location()
	if loc.String() != "/src/main.go:4:9" {
		t.Errorf("unexpected location %q", loc.String())
	}
}

func TestCoordinator_SetCallStack(t *testing.T) {
	c := newTestCoordinator()
	c.SetCallStack(testFrames())

	if n := len(c.CallStack()); n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
	id, ok := c.CurrentFrameID()
	if !ok || id != 1 {
		t.Errorf("expected top frame selected, got %d %v", id, ok)
	}
	frame, ok := c.CurrentFrame()
	if !ok || frame.Name != "main.inner" {
		t.Errorf("unexpected current frame %+v", frame)
	}
}

func TestCoordinator_SetCallStackEmpty(t *testing.T) {
	c := newTestCoordinator()
	c.SetCallStack(testFrames())
	c.SetCallStack(nil)

	if len(c.CallStack()) != 0 {
		t.Error("expected empty call stack")
	}
	if _, ok := c.CurrentFrameID(); ok {
		t.Error("expected no current frame for an empty stack")
	}
	if _, ok := c.CurrentFrame(); ok {
		t.Error("expected CurrentFrame to report nothing")
	}
}

func TestCoordinator_SetCallStackClearsVariables(t *testing.T) {
	c := newTestCoordinator()
	c.SetCallStack(testFrames())
	c.SetLocalVariables([]Variable{{Name: "x", Value: "1"}})
	c.SetChildVariables(5, []Variable{{Name: "a"}})

	c.SetCallStack(testFrames())

	if len(c.LocalVariables()) != 0 {
		t.Error("expected locals cleared by a new snapshot")
	}
	if _, ok := c.ChildVariables(5); ok {
		t.Error("expected children cleared by a new snapshot")
	}
}

func TestCoordinator_SetCallStackCopies(t *testing.T) {
	c := newTestCoordinator()
	frames := testFrames()
	c.SetCallStack(frames)

	frames[0].Name = "changed"
	if c.CallStack()[0].Name != "main.inner" {
		t.Error("expected call stack to be a copy of the input")
	}
}

func TestCoordinator_SetCurrentFrame(t *testing.T) {
	c := newTestCoordinator()
	c.SetCallStack(testFrames())
	c.SetLocalVariables([]Variable{{Name: "x"}})

	c.SetCurrentFrame(2)
	if id, _ := c.CurrentFrameID(); id != 2 {
		t.Errorf("expected frame 2, got %d", id)
	}
	if len(c.LocalVariables()) != 0 {
		t.Error("expected locals cleared on frame change")
	}
}

func TestCoordinator_SetCurrentFrameSameOrUnknown(t *testing.T) {
	c := newTestCoordinator()
	c.SetCallStack(testFrames())
	c.SetLocalVariables([]Variable{{Name: "x"}})

	notified := 0
	c.Subscribe(func(Change) { notified++ })

	c.SetCurrentFrame(1)
	c.SetCurrentFrame(42)

	if id, _ := c.CurrentFrameID(); id != 1 {
		t.Errorf("expected frame 1 kept, got %d", id)
	}
	if len(c.LocalVariables()) != 1 {
		t.Error("expected locals kept")
	}
	if notified != 0 {
		t.Errorf("expected no notifications, got %d", notified)
	}
}

func TestCoordinator_ClearFrameSelection(t *testing.T) {
	c := newTestCoordinator()
	c.SetCallStack(testFrames())

	c.ClearFrameSelection()
	if _, ok := c.CurrentFrameID(); ok {
		t.Error("expected no selection")
	}
	if len(c.CallStack()) != 3 {
		t.Error("expected call stack kept")
	}
}
