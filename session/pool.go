// Package session keeps per-browser state keyed by a random session id,
// expiring entries after an idle or absolute timeout.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one live session
type Entry[T any] struct {
	ID        string
	Value     T
	CreatedAt time.Time
	LastUsed  time.Time
}

// Pool stores session values with idle and absolute expiry
type Pool[T any] struct {
	mu          sync.Mutex
	entries     map[string]*Entry[T]
	idleTimeout time.Duration
	absTimeout  time.Duration
	maxEntries  int
	cleanupStop chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
	onEvict     func(id string, v T)
}

// Option customises a Pool
type Option[T any] func(*Pool[T])

// WithClock replaces time.Now, for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(p *Pool[T]) { p.now = now }
}

// WithEvict registers a callback run for every expired or removed session.
func WithEvict[T any](fn func(id string, v T)) Option[T] {
	return func(p *Pool[T]) { p.onEvict = fn }
}

// NewPool creates a pool and starts its cleanup routine. maxEntries <= 0
// means unbounded.
func NewPool[T any](maxEntries int, idleTimeout, absTimeout time.Duration, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{
		entries:     make(map[string]*Entry[T]),
		idleTimeout: idleTimeout,
		absTimeout:  absTimeout,
		maxEntries:  maxEntries,
		cleanupStop: make(chan struct{}),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.startCleanupRoutine()
	return p
}

// Close stops the cleanup routine and evicts every session.
func (p *Pool[T]) Close() {
	p.closeOnce.Do(func() {
		close(p.cleanupStop)
		p.mu.Lock()
		defer p.mu.Unlock()
		for id, e := range p.entries {
			p.remove(id, e)
		}
	})
}

func (p *Pool[T]) startCleanupRoutine() {
	interval := 30 * time.Second
	if p.idleTimeout > 0 && p.idleTimeout < interval {
		interval = p.idleTimeout
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				p.Cleanup()
			case <-p.cleanupStop:
				ticker.Stop()
				return
			}
		}
	}()
}

// Cleanup evicts expired sessions and returns how many were removed.
func (p *Pool[T]) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cleanupLocked()
}

func (p *Pool[T]) cleanupLocked() int {
	now := p.now()
	n := 0
	for id, e := range p.entries {
		if p.expired(e, now) {
			slog.Info("Cleaning up expired session", "session", id, "age", now.Sub(e.CreatedAt))
			p.remove(id, e)
			n++
		}
	}
	return n
}

func (p *Pool[T]) expired(e *Entry[T], now time.Time) bool {
	if p.absTimeout > 0 && now.Sub(e.CreatedAt) > p.absTimeout {
		return true
	}
	return p.idleTimeout > 0 && now.Sub(e.LastUsed) > p.idleTimeout
}

func (p *Pool[T]) remove(id string, e *Entry[T]) {
	delete(p.entries, id)
	if p.onEvict != nil {
		p.onEvict(id, e.Value)
	}
}

// Add stores v under a new session id. When the pool is full, expired
// sessions go first, then the least recently used ones.
func (p *Pool[T]) Add(v T) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxEntries > 0 && len(p.entries) >= p.maxEntries {
		p.cleanupLocked()
		for len(p.entries) >= p.maxEntries {
			p.evictOldestLocked()
		}
	}

	id := uuid.New().String()
	now := p.now()
	p.entries[id] = &Entry[T]{ID: id, Value: v, CreatedAt: now, LastUsed: now}
	return id
}

func (p *Pool[T]) evictOldestLocked() {
	var oldest *Entry[T]
	for _, e := range p.entries {
		if oldest == nil || e.LastUsed.Before(oldest.LastUsed) {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	slog.Info("Evicting least recently used session", "session", oldest.ID, "idle", p.now().Sub(oldest.LastUsed))
	p.remove(oldest.ID, oldest)
}

// Get returns the session value and marks it used. Expired sessions are
// evicted and reported missing.
func (p *Pool[T]) Get(id string) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	e, ok := p.entries[id]
	if !ok {
		return zero, false
	}
	now := p.now()
	if p.expired(e, now) {
		p.remove(id, e)
		return zero, false
	}
	e.LastUsed = now
	return e.Value, true
}

// Remove drops a session if present.
func (p *Pool[T]) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		p.remove(id, e)
	}
}

// Len reports the number of stored sessions, expired or not.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
