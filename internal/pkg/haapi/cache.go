package haapi

import (
	"sync/atomic"
	"time"
)

// DefaultStatesTTL bounds how often the bulk /states query hits the
// upstream API.
const DefaultStatesTTL = 3 * time.Second

type snapshot struct {
	fetchedAt time.Time
	states    []EntityState
}

// StatesCache memoises the bulk state list for a short interval. The
// snapshot is immutable and replaced atomically by reference, so
// concurrent requests never need a lock; at worst two of them race
// past the staleness check and both refetch.
type StatesCache struct {
	source StatesLister
	ttl    time.Duration
	now    func() time.Time

	current atomic.Value // holds *snapshot
}

func NewStatesCache(source StatesLister, ttl time.Duration) *StatesCache {
	if ttl <= 0 {
		ttl = DefaultStatesTTL
	}

	return &StatesCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (c *StatesCache) WithClock(now func() time.Time) *StatesCache {
	c.now = now
	return c
}

// States returns the cached snapshot, refreshing it inline from the
// source when missing or older than the TTL. A refresh failure leaves
// any previous snapshot in place but is reported to the caller.
func (c *StatesCache) States() ([]EntityState, error) {
	now := c.now()

	if snap, ok := c.current.Load().(*snapshot); ok {
		if now.Sub(snap.fetchedAt) <= c.ttl {
			return snap.states, nil
		}
	}

	states, err := c.source.States()
	if err != nil {
		return nil, err
	}

	c.current.Store(&snapshot{fetchedAt: now, states: states})
	return states, nil
}
