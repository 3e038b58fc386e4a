package capture

import (
	"context"
	"sync"
)

// GateState is the state of a manual-login Gate.
type GateState int

const (
	Idle GateState = iota
	AwaitingManualLogin
	Resumed
)

func (s GateState) String() string {
	switch s {
	case AwaitingManualLogin:
		return "awaiting_manual_login"
	case Resumed:
		return "resumed"
	default:
		return "idle"
	}
}

const (
	loginPrompt = "Log in to X in the opened browser window, then press Enter to continue."
	holdPrompt  = "Capture failed; the browser stays open for inspection. Press Enter to close it."
)

// Gate suspends a capture until an operator signals. It has no timeout of its
// own: only the signal or ctx ends a wait.
type Gate struct {
	mu     sync.Mutex
	state  GateState
	signal <-chan struct{}
	prompt func(msg string)
}

// NewGate returns a Gate resumed by values received on signal. prompt is
// called with a human-readable message each time the gate starts waiting.
func NewGate(signal <-chan struct{}, prompt func(msg string)) *Gate {
	if prompt == nil {
		prompt = func(string) {}
	}
	return &Gate{signal: signal, prompt: prompt}
}

// State reports the current state.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Await blocks until the operator confirms a manual login.
func (g *Gate) Await(ctx context.Context) error {
	return g.wait(ctx, loginPrompt)
}

// Hold blocks after a failure so the browser can be inspected.
func (g *Gate) Hold(ctx context.Context) error {
	return g.wait(ctx, holdPrompt)
}

func (g *Gate) wait(ctx context.Context, msg string) error {
	g.set(AwaitingManualLogin)
	g.prompt(msg)
	select {
	case <-g.signal:
		g.set(Resumed)
		return nil
	case <-ctx.Done():
		g.set(Idle)
		return ctx.Err()
	}
}

func (g *Gate) set(s GateState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}
