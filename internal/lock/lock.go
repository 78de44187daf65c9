// Package lock serializes background runs across processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned by Acquire when another holder owns the lock.
var ErrHeld = errors.New("lock already held")

type Locker interface {
	// Acquire takes the named lock for at most ttl.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocal() *Local {
	return &Local{held: map[string]time.Time{}, now: time.Now}
}

func (l *Local) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, ErrHeld
	}
	until := now.Add(ttl)
	l.held[name] = until
	return &localLease{l: l, name: name, until: until}, nil
}

type localLease struct {
	l     *Local
	name  string
	until time.Time
}

func (ll *localLease) Release(ctx context.Context) error {
	ll.l.mu.Lock()
	defer ll.l.mu.Unlock()
	// A lease that expired and was re-acquired belongs to someone else.
	if ll.l.held[ll.name].Equal(ll.until) {
		delete(ll.l.held, ll.name)
	}
	return nil
}
