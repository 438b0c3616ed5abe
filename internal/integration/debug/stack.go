package debug

import "fmt"

// StackFrame is one activation record of the paused program.
type StackFrame struct {
	// ID is assigned by the adapter and unique within a pause.
	ID int

	// Name is the function name.
	Name string

	// FilePath is the source file, empty when unknown.
	FilePath string

	// Line is the current line in the source.
	Line int

	// Column is the current column in the source.
	Column int
}

// HasSource returns true if the frame has source information.
func (f StackFrame) HasSource() bool {
	return f.FilePath != ""
}

// Location returns the frame position as a Location.
func (f StackFrame) Location() Location {
	return Location{FilePath: f.FilePath, Line: f.Line, Column: f.Column}
}

// FormatLocation returns a formatted location string like "file.go:42".
func (f StackFrame) FormatLocation() string {
	if f.FilePath == "" {
		return fmt.Sprintf("<unknown>:%d", f.Line)
	}
	return fmt.Sprintf("%s:%d", f.FilePath, f.Line)
}

// clearFrames drops the call stack and everything derived from the
// selected frame.
func (c *Coordinator) clearFrames() {
	c.callStack = nil
	c.currentFrameID = 0
	c.hasCurrentFrame = false
	c.localVariables = nil
}

// SetCallStack replaces the call stack with a complete snapshot. The top
// frame becomes the current frame, or nothing is selected when the snapshot
// is empty. Local variables and expanded children are cleared because they
// belonged to the previous snapshot.
func (c *Coordinator) SetCallStack(frames []StackFrame) {
	c.callStack = append([]StackFrame(nil), frames...)
	c.localVariables = nil
	c.children.Purge()
	if len(c.callStack) > 0 {
		c.currentFrameID = c.callStack[0].ID
		c.hasCurrentFrame = true
	} else {
		c.currentFrameID = 0
		c.hasCurrentFrame = false
	}
	c.notify(Change{Kind: ChangeCallStack})
}

// SetCurrentFrame selects the frame with the given ID. Unknown IDs are
// ignored. Selecting a different frame clears local variables; the caller
// is expected to fetch and deliver the new frame's variables.
func (c *Coordinator) SetCurrentFrame(frameID int) {
	if c.frameIndex(frameID) < 0 {
		return
	}
	if c.hasCurrentFrame && c.currentFrameID == frameID {
		return
	}
	c.currentFrameID = frameID
	c.hasCurrentFrame = true
	c.localVariables = nil
	c.notify(Change{Kind: ChangeCallStack})
}

// ClearFrameSelection deselects the current frame.
func (c *Coordinator) ClearFrameSelection() {
	if !c.hasCurrentFrame {
		return
	}
	c.currentFrameID = 0
	c.hasCurrentFrame = false
	c.localVariables = nil
	c.notify(Change{Kind: ChangeCallStack})
}

func (c *Coordinator) frameIndex(frameID int) int {
	for i, f := range c.callStack {
		if f.ID == frameID {
			return i
		}
	}
	return -1
}

// CallStack returns a copy of the call stack, top of stack first.
func (c *Coordinator) CallStack() []StackFrame {
	return append([]StackFrame(nil), c.callStack...)
}

// CurrentFrameID returns the selected frame ID. The second result is false
// when nothing is selected.
func (c *Coordinator) CurrentFrameID() (int, bool) {
	return c.currentFrameID, c.hasCurrentFrame
}

// CurrentFrame returns the selected frame, if any.
func (c *Coordinator) CurrentFrame() (StackFrame, bool) {
	if !c.hasCurrentFrame {
		return StackFrame{}, false
	}
	i := c.frameIndex(c.currentFrameID)
	if i < 0 {
		return StackFrame{}, false
	}
	return c.callStack[i], true
}
