package debug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	godap "github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/dshills/debugstate/internal/integration/debug/dap"
)

// Session errors.
var (
	ErrNotPaused     = errors.New("program is not paused")
	ErrNotRunning    = errors.New("program is not running")
	ErrSessionClosed = errors.New("debug session closed")
)

// SessionConfig configures a debug session.
type SessionConfig struct {
	// AdapterID is the debug adapter identifier sent in initialize.
	AdapterID string

	// ClientID is this client's identifier.
	ClientID string

	// ClientName is this client's human readable name.
	ClientName string

	// PathFormat is the path format ("path" or "uri").
	PathFormat string

	// StackDepth is the number of frames requested per stop. 0 means all.
	StackDepth int

	// RequestTimeout bounds each request issued while handling events.
	RequestTimeout time.Duration
}

// DefaultSessionConfig returns a default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AdapterID:      "go",
		ClientID:       "debugstate",
		ClientName:     "debugstate",
		PathFormat:     "path",
		StackDepth:     50,
		RequestTimeout: 10 * time.Second,
	}
}

// LaunchOptions describes the program to debug.
type LaunchOptions struct {
	// Program is the path of the program or package to debug.
	Program string

	// Args are the program arguments.
	Args []string

	// Cwd is the working directory of the program.
	Cwd string

	// Mode is the adapter launch mode, e.g. "debug" or "exec" for delve.
	Mode string

	// StopOnEntry pauses the program before it runs any user code.
	StopOnEntry bool

	// Extra holds adapter specific launch attributes.
	Extra map[string]interface{}
}

func (o LaunchOptions) arguments() map[string]interface{} {
	args := make(map[string]interface{}, len(o.Extra)+6)
	for k, v := range o.Extra {
		args[k] = v
	}
	args["request"] = "launch"
	args["program"] = o.Program
	args["stopOnEntry"] = o.StopOnEntry
	if o.Mode != "" {
		args["mode"] = o.Mode
	}
	if len(o.Args) > 0 {
		args["args"] = o.Args
	}
	if o.Cwd != "" {
		args["cwd"] = o.Cwd
	}
	return args
}

// AttachOptions describes a running process to debug.
type AttachOptions struct {
	// ProcessID is the process to attach to. 0 leaves it to the adapter,
	// e.g. for remote mode.
	ProcessID int

	// Mode is the adapter attach mode, e.g. "local" or "remote" for delve.
	Mode string

	// Extra holds adapter specific attach attributes.
	Extra map[string]interface{}
}

// target names the attached process for DebugFilePath.
func (o AttachOptions) target() string {
	if o.ProcessID > 0 {
		return fmt.Sprintf("pid %d", o.ProcessID)
	}
	if o.Mode != "" {
		return o.Mode
	}
	return "attached process"
}

func (o AttachOptions) arguments() map[string]interface{} {
	args := make(map[string]interface{}, len(o.Extra)+3)
	for k, v := range o.Extra {
		args[k] = v
	}
	args["request"] = "attach"
	if o.Mode != "" {
		args["mode"] = o.Mode
	}
	if o.ProcessID > 0 {
		args["processId"] = o.ProcessID
	}
	return args
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionConfig sets the session configuration.
func WithSessionConfig(cfg SessionConfig) SessionOption {
	return func(s *Session) {
		s.config = cfg
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(log logrus.FieldLogger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPauseHandler registers fn to run after a stop has been fully
// reconciled: state, call stack, locals and watch results are all current.
// fn runs on the session's event goroutine.
func WithPauseHandler(fn func()) SessionOption {
	return func(s *Session) {
		s.onPaused = fn
	}
}

// Session drives a debug adapter and reconciles its events into a
// Coordinator through a Loop.
type Session struct {
	client *dap.Client
	loop   *Loop
	config SessionConfig
	log    logrus.FieldLogger

	capsMu       sync.RWMutex
	capabilities *godap.Capabilities

	mu          sync.Mutex
	threadID    int
	adapterIDs  map[int]string
	syncedPaths map[string][]int

	initialized chan struct{}
	initOnce    sync.Once
	terminated  chan struct{}
	termOnce    sync.Once

	// Events are handled in order on one goroutine so the client's
	// receive loop never waits on a request round trip.
	queueMu sync.Mutex
	queue   []func()
	wake    chan struct{}

	onPaused func()

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSession creates a session on client whose results are applied through loop.
func NewSession(client *dap.Client, loop *Loop, opts ...SessionOption) *Session {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		client:      client,
		loop:        loop,
		config:      DefaultSessionConfig(),
		log:         discard,
		adapterIDs:  make(map[int]string),
		syncedPaths: make(map[string][]int),
		initialized: make(chan struct{}),
		terminated:  make(chan struct{}),
		wake:        make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	client.OnInitialized(s.onInitialized)
	client.OnStopped(func(body godap.StoppedEventBody) { s.enqueue(func() { s.handleStopped(body) }) })
	client.OnContinued(func(body godap.ContinuedEventBody) { s.enqueue(func() { s.handleContinued(body) }) })
	client.OnExited(func(body godap.ExitedEventBody) { s.enqueue(func() { s.handleExited(body) }) })
	client.OnTerminated(func(godap.TerminatedEventBody) { s.enqueue(s.handleTerminated) })
	client.OnOutput(func(body godap.OutputEventBody) { s.enqueue(func() { s.handleOutput(body) }) })
	client.OnBreakpoint(func(body godap.BreakpointEventBody) { s.enqueue(func() { s.handleBreakpoint(body) }) })

	s.wg.Add(2)
	go s.run()
	go s.watchAdapter()
	return s
}

// NewStdioSession starts an adapter subprocess and speaks DAP over its
// stdin and stdout.
func NewStdioSession(loop *Loop, command string, args []string, opts ...SessionOption) (*Session, error) {
	cmd := exec.Command(command, args...)
	transport, err := dap.NewStdioTransport(cmd)
	if err != nil {
		return nil, fmt.Errorf("create stdio transport: %w", err)
	}
	return newSessionOn(transport, loop, opts...), nil
}

// NewSocketSession connects to an adapter listening on address.
func NewSocketSession(ctx context.Context, loop *Loop, address string, opts ...SessionOption) (*Session, error) {
	transport, err := dap.DialSocketTransport(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("create socket transport: %w", err)
	}
	return newSessionOn(transport, loop, opts...), nil
}

func newSessionOn(transport dap.Transport, loop *Loop, opts ...SessionOption) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	var clientOpts []dap.ClientOption
	if s.log != nil {
		clientOpts = append(clientOpts, dap.WithClientLogger(s.log.WithField("component", "dap")))
	}
	return NewSession(dap.NewClient(transport, clientOpts...), loop, opts...)
}

// Capabilities returns the adapter capabilities, nil before initialize.
func (s *Session) Capabilities() *godap.Capabilities {
	s.capsMu.RLock()
	defer s.capsMu.RUnlock()
	return s.capabilities
}

// Terminated is closed when the adapter reports the session ended or the
// connection to it is lost.
func (s *Session) Terminated() <-chan struct{} {
	return s.terminated
}

// Close stops event handling and closes the adapter connection. It does not
// change the coordinator state.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.client.Close()
		s.wg.Wait()
	})
	return err
}

func (s *Session) enqueue(fn func()) {
	s.queueMu.Lock()
	s.queue = append(s.queue, fn)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) pop() (func(), bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	fn := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return fn, true
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for {
			fn, ok := s.pop()
			if !ok {
				break
			}
			fn()
			if s.ctx.Err() != nil {
				return
			}
		}
	}
}

// watchAdapter queues handleAdapterLost once the client stops receiving.
// The loss is handled after every event read before the connection dropped.
func (s *Session) watchAdapter() {
	defer s.wg.Done()
	select {
	case <-s.ctx.Done():
	case <-s.client.Disconnected():
		s.enqueue(s.handleAdapterLost)
	}
}

// requestContext bounds one adapter request made while handling an event.
func (s *Session) requestContext() (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(s.ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(s.ctx)
}

// do applies fn on the loop, logging instead of failing when the loop is gone.
func (s *Session) do(ctx context.Context, fn func(*Coordinator)) {
	if err := s.loop.Do(ctx, fn); err != nil {
		s.log.WithError(err).Warn("dropping debug state update")
	}
}

// Launch starts the program under the adapter. It runs the full
// initialize, launch, configure handshake and leaves the coordinator in
// running, or in stopped with an error line in the console on failure.
func (s *Session) Launch(ctx context.Context, opts LaunchOptions) error {
	return s.start(ctx, opts.Program, "launch", func(ctx context.Context) error {
		return s.client.Launch(ctx, opts.arguments())
	})
}

// Attach connects the adapter to a running process with the same handshake
// as Launch.
func (s *Session) Attach(ctx context.Context, opts AttachOptions) error {
	return s.start(ctx, opts.target(), "attach", func(ctx context.Context) error {
		return s.client.Attach(ctx, opts.arguments())
	})
}

func (s *Session) start(ctx context.Context, target, command string, request func(context.Context) error) error {
	if err := s.loop.Do(ctx, func(c *Coordinator) { c.BeginSession(target) }); err != nil {
		return err
	}

	if err := s.handshake(ctx, command, request); err != nil {
		msg := err.Error()
		s.do(ctx, func(c *Coordinator) {
			c.AddDebugOutput(OutputStderr, msg)
			c.SetDebugState(StateStopped)
		})
		return err
	}

	s.do(ctx, func(c *Coordinator) {
		// A stop may already have been reported (stop on entry).
		if c.State() == StateStarting {
			c.SetDebugState(StateRunning)
		}
	})
	return nil
}

// handshake runs initialize, then command (launch or attach), then sends
// breakpoints and configurationDone once the adapter is initialized.
func (s *Session) handshake(ctx context.Context, command string, request func(context.Context) error) error {
	caps, err := s.client.Initialize(ctx, godap.InitializeRequestArguments{
		ClientID:             s.config.ClientID,
		ClientName:           s.config.ClientName,
		AdapterID:            s.config.AdapterID,
		PathFormat:           s.config.PathFormat,
		LinesStartAt1:        true,
		ColumnsStartAt1:      true,
		SupportsVariableType: true,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	s.capsMu.Lock()
	s.capabilities = caps
	s.capsMu.Unlock()

	// Adapters differ on whether initialized comes before or after the
	// launch response, so the request runs concurrently with the wait.
	requested := make(chan error, 1)
	go func() {
		requested <- request(ctx)
	}()

	requestDone := false
	for waiting := true; waiting; {
		select {
		case <-s.initialized:
			waiting = false
		case err := <-requested:
			if err != nil {
				return fmt.Errorf("%s: %w", command, err)
			}
			requestDone = true
			requested = nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for initialized: %w", ctx.Err())
		}
	}

	if err := s.SyncAllBreakpoints(ctx); err != nil {
		return err
	}

	if caps.SupportsConfigurationDoneRequest {
		if err := s.client.ConfigurationDone(ctx); err != nil {
			return fmt.Errorf("configurationDone: %w", err)
		}
	}

	if !requestDone {
		select {
		case err := <-requested:
			if err != nil {
				return fmt.Errorf("%s: %w", command, err)
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", command, ctx.Err())
		}
	}
	return nil
}

// Disconnect ends the session. The coordinator moves to stopped.
func (s *Session) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	err := s.client.Disconnect(ctx, terminateDebuggee)
	s.do(ctx, func(c *Coordinator) {
		if c.IsDebugging() {
			c.SetDebugState(StateStopped)
		}
	})
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Continue resumes the program.
func (s *Session) Continue(ctx context.Context) error {
	return s.resume(ctx, "continue", s.client.Continue)
}

// Next steps over the current line.
func (s *Session) Next(ctx context.Context) error {
	return s.resume(ctx, "next", s.client.Next)
}

// StepIn steps into the call on the current line.
func (s *Session) StepIn(ctx context.Context) error {
	return s.resume(ctx, "stepIn", s.client.StepIn)
}

// StepOut runs until the current function returns.
func (s *Session) StepOut(ctx context.Context) error {
	return s.resume(ctx, "stepOut", s.client.StepOut)
}

// resume moves the coordinator to running before sending the request so a
// fast stopped event cannot be overwritten. A rejected request restores the
// previous pause.
func (s *Session) resume(ctx context.Context, command string, send func(context.Context, int) error) error {
	var (
		paused bool
		reason PauseReason
		loc    Location
		hasLoc bool
	)
	err := s.loop.Do(ctx, func(c *Coordinator) {
		if !c.IsPaused() {
			return
		}
		paused = true
		reason = c.PauseReason()
		loc, hasLoc = c.PauseLocation()
		c.SetDebugState(StateRunning)
	})
	if err != nil {
		return err
	}
	if !paused {
		return ErrNotPaused
	}

	threadID, err := s.thread(ctx)
	if err == nil {
		err = send(ctx, threadID)
	}
	if err != nil {
		s.do(ctx, func(c *Coordinator) {
			if c.State() != StateRunning {
				return
			}
			opts := []StateOption{WithPauseReason(reason)}
			if hasLoc {
				opts = append(opts, WithPauseLocation(loc))
			}
			c.SetDebugState(StatePaused, opts...)
		})
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// Pause suspends the running program. The pause itself is reported by the
// adapter's stopped event.
func (s *Session) Pause(ctx context.Context) error {
	var running bool
	if err := s.loop.Do(ctx, func(c *Coordinator) { running = c.State() == StateRunning }); err != nil {
		return err
	}
	if !running {
		return ErrNotRunning
	}

	threadID, err := s.thread(ctx)
	if err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	if err := s.client.Pause(ctx, threadID); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}

// thread returns the thread of the last stop, or the first thread the
// adapter lists.
func (s *Session) thread(ctx context.Context) (int, error) {
	s.mu.Lock()
	id := s.threadID
	s.mu.Unlock()
	if id != 0 {
		return id, nil
	}

	threads, err := s.client.Threads(ctx)
	if err != nil {
		return 0, fmt.Errorf("threads: %w", err)
	}
	if len(threads) == 0 {
		return 0, errors.New("adapter reported no threads")
	}
	return threads[0].Id, nil
}

// SelectFrame makes frameID current and loads its locals and watch results.
func (s *Session) SelectFrame(ctx context.Context, frameID int) error {
	var selected bool
	err := s.loop.Do(ctx, func(c *Coordinator) {
		c.SetCurrentFrame(frameID)
		id, ok := c.CurrentFrameID()
		selected = ok && id == frameID
	})
	if err != nil {
		return err
	}
	if !selected {
		return fmt.Errorf("unknown frame %d", frameID)
	}

	if err := s.loadVariables(ctx, frameID); err != nil {
		return err
	}
	return s.EvaluateWatches(ctx)
}

// loadVariables fetches the first inexpensive scope of frameID and stores it
// as the locals if frameID is still selected.
func (s *Session) loadVariables(ctx context.Context, frameID int) error {
	scopes, err := s.client.Scopes(ctx, frameID)
	if err != nil {
		return fmt.Errorf("scopes: %w", err)
	}
	if len(scopes) == 0 {
		return nil
	}

	scope := scopes[0]
	for _, sc := range scopes {
		if !sc.Expensive {
			scope = sc
			break
		}
	}

	vars, err := s.client.Variables(ctx, scope.VariablesReference)
	if err != nil {
		return fmt.Errorf("variables: %w", err)
	}
	locals := convertVariables(vars)

	s.do(ctx, func(c *Coordinator) {
		if id, ok := c.CurrentFrameID(); ok && id == frameID && c.IsPaused() {
			c.SetLocalVariables(locals)
		}
	})
	return nil
}

// ExpandVariable returns the children of a compound value, fetching and
// caching them on first use.
func (s *Session) ExpandVariable(ctx context.Context, ref int) ([]Variable, error) {
	if ref <= 0 {
		return nil, nil
	}

	var (
		cached []Variable
		hit    bool
	)
	if err := s.loop.Do(ctx, func(c *Coordinator) { cached, hit = c.ChildVariables(ref) }); err != nil {
		return nil, err
	}
	if hit {
		return cached, nil
	}

	vars, err := s.client.Variables(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	children := convertVariables(vars)

	s.do(ctx, func(c *Coordinator) {
		if c.IsPaused() {
			c.SetChildVariables(ref, children)
		}
	})
	return children, nil
}

// EvaluateWatches evaluates every watch expression in the current frame.
// Failures are stored as watch errors, not returned.
func (s *Session) EvaluateWatches(ctx context.Context) error {
	var (
		exprs   []string
		frameID int
		paused  bool
	)
	err := s.loop.Do(ctx, func(c *Coordinator) {
		exprs = c.WatchExpressions()
		frameID, _ = c.CurrentFrameID()
		paused = c.IsPaused()
	})
	if err != nil {
		return err
	}
	if !paused || len(exprs) == 0 {
		return nil
	}

	type result struct {
		expr, value, errMsg string
	}
	results := make([]result, 0, len(exprs))
	for _, expr := range exprs {
		body, err := s.client.Evaluate(ctx, expr, frameID, dap.EvaluateContextWatch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results = append(results, result{expr: expr, errMsg: errorText(err)})
			continue
		}
		results = append(results, result{expr: expr, value: body.Result})
	}

	s.do(ctx, func(c *Coordinator) {
		for _, r := range results {
			c.SetWatchResult(r.expr, r.value, r.errMsg)
		}
	})
	return nil
}

// Evaluate runs a console expression. The expression, then its result or
// error, are appended to the console.
func (s *Session) Evaluate(ctx context.Context, expr string) (string, error) {
	var frameID int
	err := s.loop.Do(ctx, func(c *Coordinator) {
		c.AddDebugOutput(OutputInput, expr)
		frameID, _ = c.CurrentFrameID()
	})
	if err != nil {
		return "", err
	}

	body, err := s.client.Evaluate(ctx, expr, frameID, dap.EvaluateContextRepl)
	if err != nil {
		text := errorText(err)
		s.do(ctx, func(c *Coordinator) { c.AddDebugOutput(OutputStderr, text) })
		return "", fmt.Errorf("evaluate: %w", err)
	}

	s.do(ctx, func(c *Coordinator) { c.AddDebugOutput(OutputResult, body.Result) })
	return body.Result, nil
}

// SyncBreakpoints sends the enabled breakpoints of path to the adapter and
// records its verification results. Disabled breakpoints are unverified.
func (s *Session) SyncBreakpoints(ctx context.Context, path string) error {
	var (
		sent     []Breakpoint
		disabled []Breakpoint
	)
	err := s.loop.Do(ctx, func(c *Coordinator) {
		for _, bp := range c.BreakpointsForFile(path) {
			if bp.Enabled {
				sent = append(sent, bp)
			} else {
				disabled = append(disabled, bp)
			}
		}
	})
	if err != nil {
		return err
	}

	caps := s.Capabilities()
	sbps := make([]godap.SourceBreakpoint, len(sent))
	for i, bp := range sent {
		sbps[i] = sourceBreakpoint(bp, caps)
	}

	results, err := s.client.SetBreakpoints(ctx, godap.Source{Path: path}, sbps)
	if err != nil {
		return fmt.Errorf("setBreakpoints %s: %w", path, err)
	}

	s.mu.Lock()
	for _, id := range s.syncedPaths[path] {
		delete(s.adapterIDs, id)
	}
	var ids []int
	for i, r := range results {
		if i < len(sent) && r.Id != 0 {
			s.adapterIDs[r.Id] = sent[i].ID
			ids = append(ids, r.Id)
		}
	}
	s.syncedPaths[path] = ids
	s.mu.Unlock()

	s.do(ctx, func(c *Coordinator) {
		for i, r := range results {
			if i >= len(sent) {
				break
			}
			bp, ok := c.BreakpointByID(sent[i].ID)
			if !ok || bp.FilePath != path {
				continue
			}
			c.SetBreakpointVerified(path, bp.Line, r.Verified, r.Line)
		}
		for _, d := range disabled {
			if bp, ok := c.BreakpointByID(d.ID); ok && bp.Verified {
				c.SetBreakpointVerified(bp.FilePath, bp.Line, false, 0)
			}
		}
	})
	return nil
}

// sourceBreakpoint converts bp, leaving out the attributes the adapter
// did not announce support for. Nil caps sends everything.
func sourceBreakpoint(bp Breakpoint, caps *godap.Capabilities) godap.SourceBreakpoint {
	sbp := godap.SourceBreakpoint{
		Line:         bp.Line,
		Condition:    bp.Condition,
		HitCondition: bp.HitCondition,
		LogMessage:   bp.LogMessage,
	}
	if caps == nil {
		return sbp
	}
	if !caps.SupportsConditionalBreakpoints {
		sbp.Condition = ""
	}
	if !caps.SupportsHitConditionalBreakpoints {
		sbp.HitCondition = ""
	}
	if !caps.SupportsLogPoints {
		sbp.LogMessage = ""
	}
	return sbp
}

// SyncAllBreakpoints syncs every file with breakpoints, plus files synced
// earlier that no longer have any.
func (s *Session) SyncAllBreakpoints(ctx context.Context) error {
	var files []string
	if err := s.loop.Do(ctx, func(c *Coordinator) { files = c.BreakpointFiles() }); err != nil {
		return err
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	s.mu.Lock()
	for path := range s.syncedPaths {
		if !seen[path] {
			files = append(files, path)
		}
	}
	s.mu.Unlock()

	for _, path := range files {
		if err := s.SyncBreakpoints(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// Event handlers

func (s *Session) onInitialized() {
	s.initOnce.Do(func() { close(s.initialized) })
}

func (s *Session) handleStopped(body godap.StoppedEventBody) {
	ctx, cancel := s.requestContext()
	defer cancel()

	if body.ThreadId != 0 {
		s.mu.Lock()
		s.threadID = body.ThreadId
		s.mu.Unlock()
	}
	reason := pauseReasonFor(body.Reason)

	var frames []StackFrame
	threadID, err := s.thread(ctx)
	if err == nil {
		var dframes []godap.StackFrame
		dframes, err = s.client.StackTrace(ctx, threadID, 0, s.config.StackDepth)
		frames = convertFrames(dframes)
	}
	if err != nil {
		s.log.WithError(err).Warn("fetching stack trace")
	}

	s.do(ctx, func(c *Coordinator) {
		opts := []StateOption{WithPauseReason(reason)}
		if len(frames) > 0 && frames[0].HasSource() {
			opts = append(opts, WithPauseLocation(frames[0].Location()))
		}
		c.SetDebugState(StatePaused, opts...)
		c.SetCallStack(frames)
	})

	if len(frames) > 0 {
		if err := s.loadVariables(ctx, frames[0].ID); err != nil {
			s.log.WithError(err).Warn("loading variables")
		}
	}
	if err := s.EvaluateWatches(ctx); err != nil {
		s.log.WithError(err).Warn("evaluating watches")
	}

	if s.onPaused != nil {
		s.onPaused()
	}
}

func (s *Session) handleContinued(godap.ContinuedEventBody) {
	s.do(s.ctx, func(c *Coordinator) {
		if c.IsDebugging() {
			c.SetDebugState(StateRunning)
		}
	})
}

func (s *Session) handleExited(body godap.ExitedEventBody) {
	code := body.ExitCode
	s.do(s.ctx, func(c *Coordinator) {
		c.AddDebugOutput(OutputStdout, fmt.Sprintf("Process exited with code %d", code))
	})
}

func (s *Session) handleTerminated() {
	s.do(s.ctx, func(c *Coordinator) {
		if c.State() != StateIdle {
			c.SetDebugState(StateStopped)
		}
	})
	s.termOnce.Do(func() { close(s.terminated) })
}

// handleAdapterLost ends the session when the adapter connection drops
// without a terminated event.
func (s *Session) handleAdapterLost() {
	select {
	case <-s.terminated:
		return
	default:
	}
	if s.ctx.Err() != nil {
		return
	}

	msg := "debug adapter disconnected"
	if err := s.client.Error(); err != nil && !errors.Is(err, io.EOF) {
		msg += ": " + err.Error()
	}
	s.do(s.ctx, func(c *Coordinator) {
		if c.IsDebugging() {
			s.log.Warn(msg)
			c.AddDebugOutput(OutputStderr, msg)
			c.SetDebugState(StateStopped)
		}
	})
	s.termOnce.Do(func() { close(s.terminated) })
}

func (s *Session) handleOutput(body godap.OutputEventBody) {
	var typ OutputType
	switch body.Category {
	case dap.OutputCategoryTelemetry:
		return
	case dap.OutputCategoryStderr:
		typ = OutputStderr
	default:
		typ = OutputStdout
	}
	text := body.Output
	s.do(s.ctx, func(c *Coordinator) { c.AddDebugOutput(typ, text) })
}

func (s *Session) handleBreakpoint(body godap.BreakpointEventBody) {
	s.mu.Lock()
	localID, ok := s.adapterIDs[body.Breakpoint.Id]
	s.mu.Unlock()
	if !ok {
		s.log.WithField("id", body.Breakpoint.Id).Debug("breakpoint event for unknown breakpoint")
		return
	}

	verified := body.Breakpoint.Verified && body.Reason != dap.BreakpointReasonRemoved
	line := body.Breakpoint.Line
	if body.Reason == dap.BreakpointReasonRemoved {
		line = 0
	}
	s.do(s.ctx, func(c *Coordinator) {
		bp, ok := c.BreakpointByID(localID)
		if !ok {
			return
		}
		c.SetBreakpointVerified(bp.FilePath, bp.Line, verified, line)
	})
}

// pauseReasonFor maps a DAP stop reason to a pause reason.
func pauseReasonFor(reason string) PauseReason {
	switch reason {
	case dap.StopReasonBreakpoint, dap.StopReasonFunctionBreakpoint,
		dap.StopReasonDataBreakpoint, dap.StopReasonInstructionBreakpoint:
		return PauseReasonBreakpoint
	case dap.StopReasonStep, dap.StopReasonGoto:
		return PauseReasonStep
	case dap.StopReasonEntry:
		return PauseReasonEntry
	case dap.StopReasonException, "panic":
		return PauseReasonException
	default:
		return PauseReasonPause
	}
}

func convertFrames(frames []godap.StackFrame) []StackFrame {
	if len(frames) == 0 {
		return nil
	}
	out := make([]StackFrame, len(frames))
	for i, f := range frames {
		out[i] = StackFrame{
			ID:     f.Id,
			Name:   f.Name,
			Line:   f.Line,
			Column: f.Column,
		}
		if f.Source != nil {
			out[i].FilePath = f.Source.Path
		}
	}
	return out
}

func convertVariables(vars []godap.Variable) []Variable {
	out := make([]Variable, len(vars))
	for i, v := range vars {
		out[i] = Variable{
			Name:               v.Name,
			Value:              v.Value,
			Type:               v.Type,
			VariablesReference: v.VariablesReference,
		}
	}
	return out
}

// errorText is the user facing part of an adapter error.
func errorText(err error) string {
	var respErr *dap.ResponseError
	if errors.As(err, &respErr) {
		if respErr.Detail != "" {
			return respErr.Detail
		}
		if respErr.Message != "" {
			return respErr.Message
		}
	}
	return err.Error()
}
