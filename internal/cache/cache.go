package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"GeminiChat/internal/session"
)

// Entry is a memoized result with the time it was computed.
type Entry[T any] struct {
	Value     T
	Err       error
	Timestamp time.Time
}

// Memo runs a loader at most once and replays its result, error included,
// for the lifetime of the process.
type Memo[T any] struct {
	load func(context.Context) (T, error)

	mu    sync.Mutex
	entry *Entry[T]
}

// NewMemo wraps load.
func NewMemo[T any](load func(context.Context) (T, error)) *Memo[T] {
	return &Memo[T]{load: load}
}

// Get returns the memoized result, calling the loader on first use.
// Concurrent first callers block until the single load finishes.
func (m *Memo[T]) Get(ctx context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entry == nil {
		v, err := m.load(ctx)
		m.entry = &Entry[T]{Value: v, Err: err, Timestamp: time.Now()}
	}
	return m.entry.Value, m.entry.Err
}

// Loaded returns the entry if the loader has already run.
func (m *Memo[T]) Loaded() (Entry[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return Entry[T]{}, false
	}
	return *m.entry, true
}

// GenerateCacheKey fingerprints a conversation history. It changes
// whenever a turn is appended.
func GenerateCacheKey(turns []session.Turn) string {
	h := sha256.New()
	for _, t := range turns {
		h.Write([]byte(t.Role))
		h.Write([]byte{0})
		h.Write([]byte(t.Text))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
