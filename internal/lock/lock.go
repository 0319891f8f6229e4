// Package lock provides per-lead mutual exclusion so that ticks, manual
// touches and reactivation sends for the same lead never interleave.
package lock

import (
	"context"
	"sync"

	"lead_engine_backend/platform/apperr"
)

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker grants exclusive access to a key until the returned Unlock is called.
// Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// ErrBusy is returned when a lock could not be acquired before the context ended.
var ErrBusy = apperr.Unavailable("lead is busy, try again", nil).WithReason("lead_busy")

// LeadKey is the lock key for a lead.
func LeadKey(leadID string) string {
	return "lead:" + leadID
}

// BatchKey is the lock key for a reactivation batch cursor.
func BatchKey(batchID string) string {
	return "batch:" + batchID
}

// KeyedMutex is an in-process Locker. Entries are removed when no goroutine holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

var _ Locker = (*KeyedMutex)(nil)

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (Unlock, error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.waiters++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s, false)
		return nil, ErrBusy.WithOp("lock " + key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, s, true) })
	}, nil
}

func (k *KeyedMutex) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(k.slots, key)
	}
}

// size reports tracked keys; used by tests to check cleanup.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
