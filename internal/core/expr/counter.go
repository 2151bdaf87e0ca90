package expr

import "sync"

// CounterStore backs the counter() function.
type CounterStore interface {
	// Next returns the current value for key, starting at seed, and
	// advances it by one.
	Next(key string, seed int) int
}

// Counters is a mutex-protected in-memory CounterStore.
type Counters struct {
	mu     sync.Mutex
	values map[string]int
}

// NewCounters returns an empty store.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]int)}
}

// DefaultCounters is shared by calls that do not supply their own store.
var DefaultCounters = NewCounters()

// Next implements CounterStore.
func (c *Counters) Next(key string, seed int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.values[key]
	if !ok {
		v = seed
	}
	c.values[key] = v + 1
	return v
}
