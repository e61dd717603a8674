// Package notify implements a bounded, time-boxed notification queue
// consumed by the CLI surfaces. The broker is owned by the caller and
// handed to collaborators as a capability; nothing reaches it ambiently.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification for display purposes.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is one queued, auto-expiring message.
type Notification struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Broker is a bounded FIFO notification queue. When full, the oldest entry
// is evicted to make room. Entries also carry a TTL; callers drive expiry
// explicitly via Expire, typically from their tick loop.
type Broker struct {
	mu      sync.Mutex
	entries []Notification
	max     int
	ttl     time.Duration
	now     func() time.Time // overridable for tests
}

// NewBroker creates a broker holding at most max entries, each living for
// ttl. Non-positive arguments fall back to 20 entries and 10 seconds.
func NewBroker(max int, ttl time.Duration) *Broker {
	if max <= 0 {
		max = 20
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Broker{
		entries: make([]Notification, 0, max),
		max:     max,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Push appends a notification, evicting the oldest entry if the queue is
// full, and returns the queued entry.
func (b *Broker) Push(level Level, message string) Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}

	if len(b.entries) >= b.max {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, n)
	return n
}

// Expire drops every entry whose TTL elapsed before now and returns the
// number removed.
func (b *Broker) Expire(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.entries[:0]
	for _, n := range b.entries {
		if n.ExpiresAt.After(now) {
			kept = append(kept, n)
		}
	}
	removed := len(b.entries) - len(kept)
	b.entries = kept
	return removed
}

// Dismiss removes the entry with the given ID, reporting whether it existed.
func (b *Broker) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.entries {
		if n.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns a copy of the queued notifications, oldest first.
func (b *Broker) Pending() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, len(b.entries))
	copy(out, b.entries)
	return out
}
