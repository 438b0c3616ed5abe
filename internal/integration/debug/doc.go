// Package debug holds the debug session state for a source-level debugger
// front-end.
//
// The central type is the Coordinator. It owns the breakpoint registry, the
// session state machine, the call stack and frame selection, the variable
// and watch caches, and the debug console. It receives commands from the UI
// layer and reconciliation events from a debug adapter and exposes queries
// for rendering.
//
// # Architecture
//
//	┌───────────────┐     ┌─────────────────────────────────────────┐
//	│   UI layer    │────▶│                 Loop                    │
//	└───────────────┘     │  one goroutine, one mutation at a time  │
//	┌───────────────┐     │                                         │
//	│    Session    │────▶│   ┌─────────────────────────────────┐   │
//	│ (DAP client)  │     │   │          Coordinator            │   │
//	└───────────────┘     │   │  breakpoints  state  stack      │   │
//	                      │   │  variables  watches  console    │   │
//	                      │   └─────────────────────────────────┘   │
//	                      └─────────────────────────────────────────┘
//
// The Coordinator itself never blocks and takes no locks. Every mutation must
// be applied from a single goroutine, normally through a Loop. Waiting on the
// adapter (stack traces, variables, evaluation) happens in the Session, which
// delivers terminal outcomes back through the Loop.
//
// # Session States
//
//   - idle: no session
//   - starting: launch requested, adapter not yet running the program
//   - running: program is executing
//   - paused: program is suspended with a reason and a location
//   - stopped: program exited or the adapter disconnected
//
// # Lifetimes
//
// Breakpoints and watch expressions outlive sessions and are the only state
// that is persisted. Call stack, variables, watch results, pause data and
// console output belong to the current session and are cleared by
// ResetDebugSession.
//
// # Usage
//
//	coord := debug.NewCoordinator(debug.WithLogger(log))
//	loop := debug.NewLoop(coord)
//	loop.Start()
//	defer loop.Close()
//
//	_ = loop.Do(ctx, func(c *debug.Coordinator) {
//	    c.AddBreakpoint("main.go", 42, debug.BreakpointOptions{})
//	})
//
// # Subpackages
//
//   - dap: Debug Adapter Protocol transport and client
//   - adapters: known debug adapters and how to start them
//   - persist: storage for breakpoints and watch expressions
package debug
