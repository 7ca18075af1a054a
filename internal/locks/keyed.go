// Package locks provides per-key mutual exclusion with bounded waits.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when a lock cannot be acquired within the wait
// budget. Callers may retry a bounded number of times.
var ErrBusy = errors.New("resource busy")

// Keyed serializes operations per uuid key. Acquisition waits at most
// the configured timeout, so a stuck holder cannot starve other
// operations indefinitely.
type Keyed struct {
	mu      sync.Mutex
	sems    map[uuid.UUID]chan struct{}
	timeout time.Duration
}

func NewKeyed(timeout time.Duration) *Keyed {
	return &Keyed{
		sems:    make(map[uuid.UUID]chan struct{}),
		timeout: timeout,
	}
}

// Acquire takes the lock for key, waiting up to the timeout or until ctx
// is done. On success it returns a release function that must be called
// exactly once.
//
// Semaphore channels are kept for the process lifetime; the map grows
// with the number of distinct keys, which is bounded by the catalog size.
func (k *Keyed) Acquire(ctx context.Context, key uuid.UUID) (func(), error) {
	k.mu.Lock()
	sem, ok := k.sems[key]
	if !ok {
		sem = make(chan struct{}, 1)
		k.sems[key] = sem
	}
	k.mu.Unlock()

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
