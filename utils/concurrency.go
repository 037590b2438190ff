package utils

import (
	"context"
	"time"
)

// Throttle spaces consecutive calls by at least a minimum interval.
// The first call never waits.
type Throttle struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewThrottle creates a Throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Wait blocks until the interval since the previous Wait has elapsed.
func (t *Throttle) Wait(ctx context.Context) error {
	if !t.last.IsZero() {
		if elapsed := t.now().Sub(t.last); elapsed < t.interval {
			if err := sleepCtx(ctx, t.interval-elapsed); err != nil {
				return err
			}
		}
	}
	t.last = t.now()
	return nil
}

// IDSet tracks identifiers already seen during a run.
type IDSet struct {
	seen map[string]struct{}
}

// NewIDSet creates an empty IDSet.
func NewIDSet() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Add returns true if the ID was newly added, false if already present.
func (s *IDSet) Add(id string) bool {
	if _, exists := s.seen[id]; exists {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Contains returns true if the ID has already been added.
func (s *IDSet) Contains(id string) bool {
	_, exists := s.seen[id]
	return exists
}

// Size returns the number of unique IDs tracked.
func (s *IDSet) Size() int {
	return len(s.seen)
}
