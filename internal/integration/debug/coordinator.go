package debug

import (
	"io"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// DefaultChildCacheSize is the default number of expanded variables kept.
const DefaultChildCacheSize = 256

// Coordinator owns the state of one debugger front-end: breakpoints, the
// session state machine, call stack, variables, watches and console.
//
// A Coordinator is not safe for concurrent use. All calls must come from a
// single goroutine; use a Loop to serialize UI actions and adapter events.
type Coordinator struct {
	breakpoints *breakpointRegistry

	// Session state
	state         State
	pauseReason   PauseReason
	pauseLocation *Location
	debugFilePath string

	// Call stack and selection
	callStack       []StackFrame
	currentFrameID  int
	hasCurrentFrame bool

	// Variables
	localVariables []Variable
	children       *lru.Cache

	// Watch expressions persist; results are per session
	watches      []string
	watchResults map[string]WatchResult

	console console

	observers map[uint64]Observer
	nextObsID uint64

	now func() time.Time
	log logrus.FieldLogger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock sets the clock used to timestamp console output.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxOutputEntries caps the console. Values <= 0 disable the cap.
func WithMaxOutputEntries(n int) Option {
	return func(c *Coordinator) {
		c.console.max = n
	}
}

// WithChildCacheSize sets how many expanded compound values are cached.
func WithChildCacheSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			if cache, err := lru.New(n); err == nil {
				c.children = cache
			}
		}
	}
}

// WithIDGenerator overrides breakpoint ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		if gen != nil {
			c.breakpoints.newID = gen
		}
	}
}

// NewCoordinator creates an idle coordinator with no breakpoints.
func NewCoordinator(opts ...Option) *Coordinator {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	children, _ := lru.New(DefaultChildCacheSize)
	c := &Coordinator{
		breakpoints:  newBreakpointRegistry(),
		state:        StateIdle,
		children:     children,
		watchResults: make(map[string]WatchResult),
		console:      console{max: DefaultMaxOutputEntries},
		observers:    make(map[uint64]Observer),
		now:          time.Now,
		log:          discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChangeKind identifies which part of the state changed.
type ChangeKind int

const (
	// ChangeBreakpoints means the breakpoint registry changed.
	ChangeBreakpoints ChangeKind = iota
	// ChangeState means the session state or pause data changed.
	ChangeState
	// ChangeCallStack means the call stack or frame selection changed.
	ChangeCallStack
	// ChangeVariables means local or child variables changed.
	ChangeVariables
	// ChangeWatches means watch expressions or their results changed.
	ChangeWatches
	// ChangeOutput means the console changed.
	ChangeOutput
	// ChangeReset means the session was reset.
	ChangeReset
	// ChangeRestore means persisted state was loaded.
	ChangeRestore
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeBreakpoints:
		return "breakpoints"
	case ChangeState:
		return "state"
	case ChangeCallStack:
		return "callstack"
	case ChangeVariables:
		return "variables"
	case ChangeWatches:
		return "watches"
	case ChangeOutput:
		return "output"
	case ChangeReset:
		return "reset"
	case ChangeRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Change describes one mutation.
type Change struct {
	Kind ChangeKind

	// FilePath is set for breakpoint changes scoped to one file.
	FilePath string
}

// Observer is called synchronously after each mutation.
// Observers must not mutate the coordinator.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id    uint64
	coord *Coordinator
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.coord != nil {
		delete(s.coord.observers, s.id)
		s.coord = nil
	}
}

// Subscribe registers an observer for all changes.
func (c *Coordinator) Subscribe(observer Observer) *Subscription {
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = observer
	return &Subscription{id: id, coord: c}
}

func (c *Coordinator) notify(change Change) {
	for _, obs := range c.observers {
		obs(change)
	}
}

// PersistedState is the part of the coordinator that survives restarts.
type PersistedState struct {
	Breakpoints      map[string][]Breakpoint `json:"breakpoints" yaml:"breakpoints"`
	WatchExpressions []string                `json:"watchExpressions" yaml:"watchExpressions"`
}

// Persisted returns the breakpoints and watch expressions to store.
// Verification status is not part of the persisted state.
func (c *Coordinator) Persisted() PersistedState {
	bps := c.breakpoints.snapshot()
	for path := range bps {
		for i := range bps[path] {
			bps[path][i].Verified = false
		}
	}
	return PersistedState{
		Breakpoints:      bps,
		WatchExpressions: c.WatchExpressions(),
	}
}

// Restore replaces breakpoints and watch expressions with st. Restored
// breakpoints are unverified. Entries with an empty path, a line below 1 or
// a duplicate location are skipped, as are duplicate watch expressions.
// Breakpoints without an ID get a fresh one.
func (c *Coordinator) Restore(st PersistedState) {
	reg := newBreakpointRegistry()
	reg.newID = c.breakpoints.newID

	paths := make([]string, 0, len(st.Breakpoints))
	for path := range st.Breakpoints {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	seenIDs := make(map[string]bool)
	for _, path := range paths {
		for _, bp := range st.Breakpoints[path] {
			if bp.FilePath == "" {
				bp.FilePath = path
			}
			if path == "" || bp.FilePath != path || bp.Line < 1 {
				c.log.WithField("path", path).WithField("line", bp.Line).Warn("skipping invalid persisted breakpoint")
				continue
			}
			if _, exists := reg.get(path, bp.Line); exists {
				continue
			}
			if bp.ID == "" || seenIDs[bp.ID] {
				bp.ID = reg.newID()
			}
			seenIDs[bp.ID] = true
			bp.Verified = false
			restored := bp
			reg.byPath[path] = append(reg.byPath[path], &restored)
		}
	}
	c.breakpoints = reg

	c.watches = nil
	for _, expr := range st.WatchExpressions {
		if expr != "" && c.watchIndex(expr) < 0 {
			c.watches = append(c.watches, expr)
		}
	}
	for expr := range c.watchResults {
		if c.watchIndex(expr) < 0 {
			delete(c.watchResults, expr)
		}
	}

	c.notify(Change{Kind: ChangeRestore})
}
