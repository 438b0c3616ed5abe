package debug

import (
	"sort"

	"github.com/google/uuid"
)

// Breakpoint represents a user-defined line breakpoint.
type Breakpoint struct {
	// ID is a unique identifier that never changes for the breakpoint's lifetime.
	ID string `json:"id" yaml:"id"`

	// FilePath is the source file path.
	FilePath string `json:"filePath" yaml:"filePath"`

	// Line is the line number (1-based).
	Line int `json:"line" yaml:"line"`

	// Enabled indicates if the breakpoint is enabled.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Condition is the condition expression.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// HitCondition is the hit count condition.
	HitCondition string `json:"hitCondition,omitempty" yaml:"hitCondition,omitempty"`

	// LogMessage turns the breakpoint into a log point.
	LogMessage string `json:"logMessage,omitempty" yaml:"logMessage,omitempty"`

	// Verified indicates if the adapter confirmed the breakpoint.
	// It is never persisted.
	Verified bool `json:"-" yaml:"-"`
}

// IsLogPoint returns true if the breakpoint logs instead of stopping.
func (b Breakpoint) IsLogPoint() bool {
	return b.LogMessage != ""
}

// BreakpointOptions are the optional fields of a new breakpoint.
type BreakpointOptions struct {
	Condition    string
	HitCondition string
	LogMessage   string
}

// BreakpointUpdate describes a partial update. Nil fields are left unchanged.
// The line cannot be updated; it only changes through verification.
type BreakpointUpdate struct {
	Enabled      *bool
	Condition    *string
	HitCondition *string
	LogMessage   *string
}

// IsEmpty returns true if the update changes nothing.
func (u BreakpointUpdate) IsEmpty() bool {
	return u.Enabled == nil && u.Condition == nil && u.HitCondition == nil && u.LogMessage == nil
}

// apply merges the update into bp.
func (u BreakpointUpdate) apply(bp *Breakpoint) {
	if u.Enabled != nil {
		bp.Enabled = *u.Enabled
	}
	if u.Condition != nil {
		bp.Condition = *u.Condition
	}
	if u.HitCondition != nil {
		bp.HitCondition = *u.HitCondition
	}
	if u.LogMessage != nil {
		bp.LogMessage = *u.LogMessage
	}
}

// breakpointRegistry stores breakpoints grouped by file path.
// Files never map to an empty slice; the key is dropped instead.
type breakpointRegistry struct {
	// Breakpoints grouped by file path, in insertion order
	byPath map[string][]*Breakpoint

	newID func() string
}

func newBreakpointRegistry() *breakpointRegistry {
	return &breakpointRegistry{
		byPath: make(map[string][]*Breakpoint),
		newID:  uuid.NewString,
	}
}

// find returns the index of the breakpoint at line in path, or -1.
func (r *breakpointRegistry) find(path string, line int) int {
	for i, bp := range r.byPath[path] {
		if bp.Line == line {
			return i
		}
	}
	return -1
}

func (r *breakpointRegistry) get(path string, line int) (*Breakpoint, bool) {
	i := r.find(path, line)
	if i < 0 {
		return nil, false
	}
	return r.byPath[path][i], true
}

// add inserts a breakpoint unless one already exists at the location.
// The second result reports whether a new breakpoint was created.
func (r *breakpointRegistry) add(path string, line int, opts BreakpointOptions) (*Breakpoint, bool) {
	if bp, ok := r.get(path, line); ok {
		return bp, false
	}

	bp := &Breakpoint{
		ID:           r.newID(),
		FilePath:     path,
		Line:         line,
		Enabled:      true,
		Condition:    opts.Condition,
		HitCondition: opts.HitCondition,
		LogMessage:   opts.LogMessage,
	}
	r.byPath[path] = append(r.byPath[path], bp)
	return bp, true
}

// remove deletes the breakpoint at the location and drops the file key if
// it was the last one.
func (r *breakpointRegistry) remove(path string, line int) (*Breakpoint, bool) {
	i := r.find(path, line)
	if i < 0 {
		return nil, false
	}

	bps := r.byPath[path]
	bp := bps[i]
	bps = append(bps[:i:i], bps[i+1:]...)
	if len(bps) == 0 {
		delete(r.byPath, path)
	} else {
		r.byPath[path] = bps
	}
	return bp, true
}

// relocate moves the breakpoint at line to newLine within the same file,
// keeping its ID and options. A breakpoint already at newLine is removed
// and returned as the replaced occupant.
func (r *breakpointRegistry) relocate(path string, line, newLine int) (moved, replaced *Breakpoint, ok bool) {
	bp, ok := r.get(path, line)
	if !ok {
		return nil, nil, false
	}
	if line == newLine {
		return bp, nil, true
	}
	if occupant, taken := r.remove(path, newLine); taken {
		replaced = occupant
	}
	bp.Line = newLine
	return bp, replaced, true
}

func (r *breakpointRegistry) clearPath(path string) int {
	n := len(r.byPath[path])
	delete(r.byPath, path)
	return n
}

func (r *breakpointRegistry) clearAll() int {
	n := r.count()
	r.byPath = make(map[string][]*Breakpoint)
	return n
}

func (r *breakpointRegistry) count() int {
	n := 0
	for _, bps := range r.byPath {
		n += len(bps)
	}
	return n
}

// byID scans all files for a breakpoint with the given ID.
func (r *breakpointRegistry) byID(id string) (*Breakpoint, bool) {
	for _, bps := range r.byPath {
		for _, bp := range bps {
			if bp.ID == id {
				return bp, true
			}
		}
	}
	return nil, false
}

// forPath returns copies of the breakpoints in path, in insertion order.
func (r *breakpointRegistry) forPath(path string) []Breakpoint {
	bps := r.byPath[path]
	result := make([]Breakpoint, len(bps))
	for i, bp := range bps {
		result[i] = *bp
	}
	return result
}

// paths returns the file paths with at least one breakpoint, sorted.
func (r *breakpointRegistry) paths() []string {
	paths := make([]string, 0, len(r.byPath))
	for path := range r.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// snapshot returns a deep copy of the whole registry.
func (r *breakpointRegistry) snapshot() map[string][]Breakpoint {
	result := make(map[string][]Breakpoint, len(r.byPath))
	for path := range r.byPath {
		result[path] = r.forPath(path)
	}
	return result
}

// AddBreakpoint creates an enabled, unverified breakpoint at the location.
// If a breakpoint already exists there, it is returned unchanged and opts is
// ignored. No adapter call is made; verification arrives later through
// SetBreakpointVerified.
func (c *Coordinator) AddBreakpoint(path string, line int, opts BreakpointOptions) Breakpoint {
	bp, created := c.breakpoints.add(path, line, opts)
	if created {
		c.log.WithField("path", path).WithField("line", line).Debug("breakpoint added")
		c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
	}
	return *bp
}

// RemoveBreakpoint removes the breakpoint at the location. It is a no-op if
// there is none.
func (c *Coordinator) RemoveBreakpoint(path string, line int) {
	if _, ok := c.breakpoints.remove(path, line); ok {
		c.log.WithField("path", path).WithField("line", line).Debug("breakpoint removed")
		c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
	}
}

// ToggleBreakpoint removes the breakpoint at the location if present,
// otherwise adds one with default options. It returns the breakpoint that
// was added or removed and true if it was added.
func (c *Coordinator) ToggleBreakpoint(path string, line int) (Breakpoint, bool) {
	if bp, ok := c.breakpoints.remove(path, line); ok {
		c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
		return *bp, false
	}
	bp, _ := c.breakpoints.add(path, line, BreakpointOptions{})
	c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
	return *bp, true
}

// UpdateBreakpoint merges update into the breakpoint at the location.
// It is a no-op if there is none.
func (c *Coordinator) UpdateBreakpoint(path string, line int, update BreakpointUpdate) {
	bp, ok := c.breakpoints.get(path, line)
	if !ok || update.IsEmpty() {
		return
	}
	update.apply(bp)
	c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
}

// SetBreakpointVerified records the adapter's verification result for the
// breakpoint at the location. A positive newLine relocates the breakpoint in
// place, keeping its ID and every other field. A breakpoint already at
// newLine is replaced by the relocated one.
func (c *Coordinator) SetBreakpointVerified(path string, line int, verified bool, newLine int) {
	bp, ok := c.breakpoints.get(path, line)
	if !ok {
		return
	}
	if newLine > 0 && newLine != line {
		_, replaced, _ := c.breakpoints.relocate(path, line, newLine)
		if replaced != nil {
			c.log.WithField("path", path).WithField("line", line).WithField("newLine", newLine).
				WithField("replaced", replaced.ID).Debug("relocated breakpoint replaced existing breakpoint")
		}
	}
	bp.Verified = verified
	c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
}

// ClearBreakpoints removes every breakpoint in path.
func (c *Coordinator) ClearBreakpoints(path string) {
	if c.breakpoints.clearPath(path) > 0 {
		c.notify(Change{Kind: ChangeBreakpoints, FilePath: path})
	}
}

// ClearAllBreakpoints removes every breakpoint in every file.
func (c *Coordinator) ClearAllBreakpoints() {
	if c.breakpoints.clearAll() > 0 {
		c.notify(Change{Kind: ChangeBreakpoints})
	}
}

// BreakpointsForFile returns a snapshot of the breakpoints in path in
// insertion order. Files without breakpoints yield an empty slice.
func (c *Coordinator) BreakpointsForFile(path string) []Breakpoint {
	return c.breakpoints.forPath(path)
}

// BreakpointAt returns the breakpoint at the location, if any.
func (c *Coordinator) BreakpointAt(path string, line int) (Breakpoint, bool) {
	bp, ok := c.breakpoints.get(path, line)
	if !ok {
		return Breakpoint{}, false
	}
	return *bp, true
}

// BreakpointByID returns the breakpoint with the given ID, if any.
func (c *Coordinator) BreakpointByID(id string) (Breakpoint, bool) {
	bp, ok := c.breakpoints.byID(id)
	if !ok {
		return Breakpoint{}, false
	}
	return *bp, true
}

// BreakpointFiles returns the sorted file paths that have breakpoints.
func (c *Coordinator) BreakpointFiles() []string {
	return c.breakpoints.paths()
}

// AllBreakpoints returns a snapshot of the whole registry.
func (c *Coordinator) AllBreakpoints() map[string][]Breakpoint {
	return c.breakpoints.snapshot()
}
