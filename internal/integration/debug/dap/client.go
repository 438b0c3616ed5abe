package dap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	godap "github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// Client is a DAP client that communicates with a debug adapter.
type Client struct {
	transport Transport
	log       logrus.FieldLogger
	seq       int64
	pending   map[int]*pendingRequest
	pendingMu sync.Mutex
	handlers  eventHandlers
	handlerMu sync.RWMutex
	done      chan struct{}
	lost      chan struct{}
	closeOnce sync.Once
	err       error
	errMu     sync.RWMutex
}

// pendingRequest tracks a request awaiting its response.
type pendingRequest struct {
	done     chan struct{}
	once     sync.Once
	response godap.Message
	err      error
}

func (p *pendingRequest) finish(resp godap.Message, err error) {
	p.once.Do(func() {
		p.response = resp
		p.err = err
		close(p.done)
	})
}

// eventHandlers stores event handler functions.
type eventHandlers struct {
	onInitialized func()
	onStopped     func(godap.StoppedEventBody)
	onContinued   func(godap.ContinuedEventBody)
	onExited      func(godap.ExitedEventBody)
	onTerminated  func(godap.TerminatedEventBody)
	onOutput      func(godap.OutputEventBody)
	onBreakpoint  func(godap.BreakpointEventBody)
	onAny         func(godap.Message)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger for protocol diagnostics.
func WithClientLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a DAP client and starts reading from transport.
// Event handlers run on the receive goroutine and must not block.
func NewClient(transport Transport, opts ...ClientOption) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		transport: transport,
		log:       discard,
		pending:   make(map[int]*pendingRequest),
		done:      make(chan struct{}),
		lost:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.receiveLoop()
	return c
}

// Close closes the client and underlying transport. Pending requests fail
// with ErrClientClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close()
		c.failPending(ErrClientClosed)
	})
	return err
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Disconnected is closed when the receive loop stops, either because the
// adapter went away or because the client was closed. Error reports why.
func (c *Client) Disconnected() <-chan struct{} {
	return c.lost
}

// Error returns the error that stopped the receive loop, if any.
func (c *Client) Error() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int]*pendingRequest)
	c.pendingMu.Unlock()

	for _, req := range pending {
		req.finish(nil, err)
	}
}

// receiveLoop reads messages until the transport fails or the client closes.
func (c *Client) receiveLoop() {
	defer close(c.lost)
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			var unsupported *UnsupportedMessageError
			if errors.As(err, &unsupported) {
				c.log.WithError(err).Debug("skipping dap message")
				continue
			}
			if c.closed() {
				return
			}

			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()

			if !errors.Is(err, io.EOF) {
				c.log.WithError(err).Warn("dap receive failed")
			}
			c.failPending(err)
			return
		}

		if c.closed() {
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage dispatches a received message.
func (c *Client) handleMessage(msg godap.Message) {
	if resp, ok := msg.(godap.ResponseMessage); ok {
		c.handleResponse(resp.GetResponse(), msg)
		return
	}
	c.handleEvent(msg)
}

func (c *Client) handleResponse(resp *godap.Response, msg godap.Message) {
	c.pendingMu.Lock()
	req, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.WithField("request_seq", resp.RequestSeq).WithField("command", resp.Command).
			Debug("dropping unmatched dap response")
		return
	}
	req.finish(msg, nil)
}

// handleEvent calls the registered handler for an event.
func (c *Client) handleEvent(msg godap.Message) {
	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()

	switch evt := msg.(type) {
	case *godap.InitializedEvent:
		if handlers.onInitialized != nil {
			handlers.onInitialized()
		}
	case *godap.StoppedEvent:
		if handlers.onStopped != nil {
			handlers.onStopped(evt.Body)
		}
	case *godap.ContinuedEvent:
		if handlers.onContinued != nil {
			handlers.onContinued(evt.Body)
		}
	case *godap.ExitedEvent:
		if handlers.onExited != nil {
			handlers.onExited(evt.Body)
		}
	case *godap.TerminatedEvent:
		if handlers.onTerminated != nil {
			handlers.onTerminated(evt.Body)
		}
	case *godap.OutputEvent:
		if handlers.onOutput != nil {
			handlers.onOutput(evt.Body)
		}
	case *godap.BreakpointEvent:
		if handlers.onBreakpoint != nil {
			handlers.onBreakpoint(evt.Body)
		}
	}

	if handlers.onAny != nil {
		handlers.onAny(msg)
	}
}

// newRequest allocates the next sequence number.
func (c *Client) newRequest(command string) godap.Request {
	var req godap.Request
	req.Type = "request"
	req.Command = command
	req.Seq = int(atomic.AddInt64(&c.seq, 1))
	return req
}

// call sends msg and waits for the matching response. A failed response is
// returned as *ResponseError.
func (c *Client) call(ctx context.Context, seq int, msg godap.Message) (godap.Message, error) {
	if c.closed() {
		return nil, ErrClientClosed
	}

	pending := &pendingRequest{done: make(chan struct{})}
	c.pendingMu.Lock()
	c.pending[seq] = pending
	c.pendingMu.Unlock()

	if err := c.transport.Send(msg); err != nil {
		c.removePending(seq)
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		c.removePending(seq)
		return nil, ctx.Err()
	case <-pending.done:
		return pending.result()
	case <-c.lost:
		// The response may have arrived just before the loop stopped.
		select {
		case <-pending.done:
			return pending.result()
		default:
		}
		c.removePending(seq)
		if err := c.Error(); err != nil {
			return nil, err
		}
		return nil, ErrClientClosed
	}
}

// result returns the response of a finished request.
func (p *pendingRequest) result() (godap.Message, error) {
	if p.err != nil {
		return nil, p.err
	}
	if errResp, ok := p.response.(*godap.ErrorResponse); ok {
		return nil, newResponseError(errResp)
	}
	return p.response, nil
}

func (c *Client) removePending(seq int) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

func unexpected(command string, msg godap.Message) error {
	return fmt.Errorf("%s: %w %T", command, ErrUnexpectedResponse, msg)
}

// Event handler setters

// OnInitialized sets the handler for the initialized event.
func (c *Client) OnInitialized(handler func()) {
	c.handlerMu.Lock()
	c.handlers.onInitialized = handler
	c.handlerMu.Unlock()
}

// OnStopped sets the handler for the stopped event.
func (c *Client) OnStopped(handler func(godap.StoppedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onStopped = handler
	c.handlerMu.Unlock()
}

// OnContinued sets the handler for the continued event.
func (c *Client) OnContinued(handler func(godap.ContinuedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onContinued = handler
	c.handlerMu.Unlock()
}

// OnExited sets the handler for the exited event.
func (c *Client) OnExited(handler func(godap.ExitedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onExited = handler
	c.handlerMu.Unlock()
}

// OnTerminated sets the handler for the terminated event.
func (c *Client) OnTerminated(handler func(godap.TerminatedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onTerminated = handler
	c.handlerMu.Unlock()
}

// OnOutput sets the handler for the output event.
func (c *Client) OnOutput(handler func(godap.OutputEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onOutput = handler
	c.handlerMu.Unlock()
}

// OnBreakpoint sets the handler for the breakpoint event.
func (c *Client) OnBreakpoint(handler func(godap.BreakpointEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onBreakpoint = handler
	c.handlerMu.Unlock()
}

// OnAnyEvent sets a handler called after every event, including those
// without a dedicated handler.
func (c *Client) OnAnyEvent(handler func(godap.Message)) {
	c.handlerMu.Lock()
	c.handlers.onAny = handler
	c.handlerMu.Unlock()
}

// DAP Request Methods

// Initialize sends the initialize request.
func (c *Client) Initialize(ctx context.Context, args godap.InitializeRequestArguments) (*godap.Capabilities, error) {
	req := &godap.InitializeRequest{Request: c.newRequest("initialize"), Arguments: args}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.InitializeResponse)
	if !ok {
		return nil, unexpected("initialize", msg)
	}
	return &resp.Body, nil
}

// ConfigurationDone sends the configurationDone request.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	req := &godap.ConfigurationDoneRequest{Request: c.newRequest("configurationDone")}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// Launch sends the launch request. Arguments are adapter specific.
func (c *Client) Launch(ctx context.Context, args map[string]interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode launch arguments: %w", err)
	}
	req := &godap.LaunchRequest{Request: c.newRequest("launch"), Arguments: raw}
	_, err = c.call(ctx, req.Seq, req)
	return err
}

// Attach sends the attach request. Arguments are adapter specific.
func (c *Client) Attach(ctx context.Context, args map[string]interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode attach arguments: %w", err)
	}
	req := &godap.AttachRequest{Request: c.newRequest("attach"), Arguments: raw}
	_, err = c.call(ctx, req.Seq, req)
	return err
}

// Disconnect sends the disconnect request.
func (c *Client) Disconnect(ctx context.Context, terminateDebuggee bool) error {
	req := &godap.DisconnectRequest{
		Request:   c.newRequest("disconnect"),
		Arguments: &godap.DisconnectArguments{TerminateDebuggee: terminateDebuggee},
	}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// SetBreakpoints replaces all breakpoints of one source. The adapter answers
// with one breakpoint per requested breakpoint, in request order.
func (c *Client) SetBreakpoints(ctx context.Context, source godap.Source, bps []godap.SourceBreakpoint) ([]godap.Breakpoint, error) {
	req := &godap.SetBreakpointsRequest{
		Request: c.newRequest("setBreakpoints"),
		Arguments: godap.SetBreakpointsArguments{
			Source:      source,
			Breakpoints: bps,
		},
	}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.SetBreakpointsResponse)
	if !ok {
		return nil, unexpected("setBreakpoints", msg)
	}
	return resp.Body.Breakpoints, nil
}

// Continue resumes execution of a thread.
func (c *Client) Continue(ctx context.Context, threadID int) error {
	req := &godap.ContinueRequest{
		Request:   c.newRequest("continue"),
		Arguments: godap.ContinueArguments{ThreadId: threadID},
	}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// Next steps over.
func (c *Client) Next(ctx context.Context, threadID int) error {
	req := &godap.NextRequest{
		Request:   c.newRequest("next"),
		Arguments: godap.NextArguments{ThreadId: threadID},
	}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// StepIn steps into a function call.
func (c *Client) StepIn(ctx context.Context, threadID int) error {
	req := &godap.StepInRequest{
		Request:   c.newRequest("stepIn"),
		Arguments: godap.StepInArguments{ThreadId: threadID},
	}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// StepOut steps out of the current function.
func (c *Client) StepOut(ctx context.Context, threadID int) error {
	req := &godap.StepOutRequest{
		Request:   c.newRequest("stepOut"),
		Arguments: godap.StepOutArguments{ThreadId: threadID},
	}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// Pause suspends a thread.
func (c *Client) Pause(ctx context.Context, threadID int) error {
	req := &godap.PauseRequest{
		Request:   c.newRequest("pause"),
		Arguments: godap.PauseArguments{ThreadId: threadID},
	}
	_, err := c.call(ctx, req.Seq, req)
	return err
}

// Threads lists the debuggee's threads.
func (c *Client) Threads(ctx context.Context) ([]godap.Thread, error) {
	req := &godap.ThreadsRequest{Request: c.newRequest("threads")}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.ThreadsResponse)
	if !ok {
		return nil, unexpected("threads", msg)
	}
	return resp.Body.Threads, nil
}

// StackTrace returns up to levels frames of a thread; levels <= 0 means all.
func (c *Client) StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]godap.StackFrame, error) {
	if levels < 0 {
		levels = 0
	}
	req := &godap.StackTraceRequest{
		Request: c.newRequest("stackTrace"),
		Arguments: godap.StackTraceArguments{
			ThreadId:   threadID,
			StartFrame: startFrame,
			Levels:     levels,
		},
	}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.StackTraceResponse)
	if !ok {
		return nil, unexpected("stackTrace", msg)
	}
	return resp.Body.StackFrames, nil
}

// Scopes returns the variable scopes of a frame.
func (c *Client) Scopes(ctx context.Context, frameID int) ([]godap.Scope, error) {
	req := &godap.ScopesRequest{
		Request:   c.newRequest("scopes"),
		Arguments: godap.ScopesArguments{FrameId: frameID},
	}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.ScopesResponse)
	if !ok {
		return nil, unexpected("scopes", msg)
	}
	return resp.Body.Scopes, nil
}

// Variables returns the children of a variables reference.
func (c *Client) Variables(ctx context.Context, ref int) ([]godap.Variable, error) {
	req := &godap.VariablesRequest{
		Request:   c.newRequest("variables"),
		Arguments: godap.VariablesArguments{VariablesReference: ref},
	}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.VariablesResponse)
	if !ok {
		return nil, unexpected("variables", msg)
	}
	return resp.Body.Variables, nil
}

// Evaluate evaluates expression in the context of a frame. frameID 0 means
// the global scope.
func (c *Client) Evaluate(ctx context.Context, expression string, frameID int, evalContext string) (*godap.EvaluateResponseBody, error) {
	req := &godap.EvaluateRequest{
		Request: c.newRequest("evaluate"),
		Arguments: godap.EvaluateArguments{
			Expression: expression,
			FrameId:    frameID,
			Context:    evalContext,
		},
	}
	msg, err := c.call(ctx, req.Seq, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*godap.EvaluateResponse)
	if !ok {
		return nil, unexpected("evaluate", msg)
	}
	return &resp.Body, nil
}
