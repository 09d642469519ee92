// Package signal provides the non-blocking debounce primitive used for
// "something changed" bookkeeping writes: a shared timestamp refreshed at
// most once per cooldown window, guarded so that concurrent writers never
// block on each other.
package signal

import (
	"sync"
	"time"
)

// CooldownGate grants at most one pass per cooldown window. Failure to
// acquire the lock is not an error, it is an intentional skip: whoever
// holds it is performing an equivalent update.
type CooldownGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
}

// NewCooldownGate creates a gate with the given cooldown window.
func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	return &CooldownGate{cooldown: cooldown}
}

// TryPass reports whether the caller won the right to perform the update.
// A caller that loses the lock race, or arrives inside the cooldown window,
// gets false and should simply skip.
func (g *CooldownGate) TryPass(now time.Time) bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	return true
}

// Last returns the time of the most recent granted pass.
func (g *CooldownGate) Last() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
