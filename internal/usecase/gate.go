package usecase

import (
	"sync"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// ForceModeGate lets one forced save at a time override the naming mode.
// It is acquired by a forced-save trigger and released when the resulting
// save completes, whatever its outcome.
type ForceModeGate struct {
	mu   sync.Mutex
	held bool
	mode domain.NamingMode
}

// NewForceModeGate creates a released gate.
func NewForceModeGate() *ForceModeGate {
	return &ForceModeGate{}
}

// TryAcquire holds the gate for mode. It returns false if a forced save is
// already in flight.
func (g *ForceModeGate) TryAcquire(mode domain.NamingMode) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held {
		return false
	}
	g.held = true
	g.mode = mode
	return true
}

// Release frees the gate. Releasing a free gate is a no-op.
func (g *ForceModeGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.held = false
}

// Pending returns the forced mode while the gate is held.
func (g *ForceModeGate) Pending() (domain.NamingMode, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.mode, g.held
}
