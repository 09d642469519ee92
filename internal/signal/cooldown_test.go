package signal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownGate_FirstPassGranted(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	now := time.Now()

	assert.True(t, gate.TryPass(now))
	assert.Equal(t, now, gate.Last())
}

func TestCooldownGate_BlocksWithinWindow(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	now := time.Now()

	assert.True(t, gate.TryPass(now))
	assert.False(t, gate.TryPass(now.Add(30*time.Second)))
	// The denied attempt does not move the timestamp.
	assert.Equal(t, now, gate.Last())
}

func TestCooldownGate_GrantsAfterWindow(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	now := time.Now()

	assert.True(t, gate.TryPass(now))
	later := now.Add(time.Minute)
	assert.True(t, gate.TryPass(later))
	assert.Equal(t, later, gate.Last())
}

func TestCooldownGate_ConcurrentSingleWinner(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.TryPass(now) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Losing the lock race or landing inside the window both mean skip.
	assert.Equal(t, 1, winners)
}
