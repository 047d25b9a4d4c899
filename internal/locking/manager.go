package locking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTimeout occurs when a lock cannot be acquired within the manager's
// acquisition timeout.
var ErrTimeout = errors.New("lock acquisition timed out")

// Manager hands out mutually exclusive execution rights keyed by arbitrary
// string identifiers. Unrelated keys proceed fully in parallel.
type Manager struct {
	mu      sync.Mutex
	locks   map[string]*keyLock
	timeout time.Duration
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewManager builds a lock manager with the given acquisition timeout.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		locks:   make(map[string]*keyLock),
		timeout: timeout,
	}
}

// WithLock acquires every key in canonical (ascending) order, runs fn, and
// releases the keys on every exit path. Sorting the keys before acquisition
// keeps lock order consistent across callers so two transfers touching the
// same pair of accounts in opposite directions cannot deadlock.
func (m *Manager) WithLock(ctx context.Context, keys []string, fn func() error) error {
	if len(keys) == 0 {
		return fn()
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	acquired := make([]string, 0, len(sorted))
	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			m.release(acquired[i])
		}
	}()

	for _, key := range sorted {
		ch := m.acquireSlot(key)
		select {
		case ch <- struct{}{}:
			acquired = append(acquired, key)
		case <-timer.C:
			m.unref(key)
			return ErrTimeout
		case <-ctx.Done():
			m.unref(key)
			return ctx.Err()
		}
	}

	return fn()
}

// acquireSlot returns the channel guarding key, creating it on first use and
// bumping the refcount so concurrent waiters share one channel.
func (m *Manager) acquireSlot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	return kl.ch
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl := m.locks[key]
	<-kl.ch
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl := m.locks[key]
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}
