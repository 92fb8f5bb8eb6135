package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/c-pro/geche"
)

// Page is one fetch's worth of items for a key. Total and Unread are
// aggregate counters carried on the first page of a list.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Total  int    `json:"total"`
	Unread int    `json:"unread"`
	Cursor string `json:"cursor,omitempty"`
}

// Clone returns a copy of the page with its own item slice.
func (p Page[T]) Clone() Page[T] {
	out := p
	out.Items = make([]T, len(p.Items))
	copy(out.Items, p.Items)
	return out
}

// Key builds a composite cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Store is a process-wide keyed store of paginated lists. Each key maps to
// an ordered sequence of pages in insertion/fetch order. Writes go through
// a function-of-previous-value form under the store lock, so a writer
// always operates on the latest value. Subscribers are notified after
// every write for the key they watch.
type Store[T any] struct {
	pages *geche.Locker[string, []Page[T]]

	mu      sync.Mutex
	subs    map[string]map[int]func([]Page[T])
	nextSub int
	fetches map[string]context.CancelFunc
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		pages:   geche.NewLocker[string, []Page[T]](geche.NewMapCache[string, []Page[T]]()),
		subs:    make(map[string]map[int]func([]Page[T])),
		fetches: make(map[string]context.CancelFunc),
	}
}

// Get returns the cached page list for key. The second return value is
// false when the key has never been written; that is not an error.
func (s *Store[T]) Get(key string) ([]Page[T], bool) {
	tx := s.pages.Lock()
	defer tx.Unlock()

	pages, err := tx.Get(key)
	if err != nil {
		return nil, false
	}
	return pages, true
}

// Set replaces the page list for key and notifies subscribers.
func (s *Store[T]) Set(key string, pages []Page[T]) {
	tx := s.pages.Lock()
	tx.Set(key, pages)
	tx.Unlock()

	s.notify(key, pages)
}

// Update applies fn to the current page list (nil when the key is absent)
// and stores the result.
func (s *Store[T]) Update(key string, fn func(pages []Page[T]) []Page[T]) {
	tx := s.pages.Lock()
	prev, _ := tx.Get(key)
	next := fn(prev)
	tx.Set(key, next)
	tx.Unlock()

	s.notify(key, next)
}

// Patch applies fn only when the key is already cached. A missing key is a
// no-op, not an error: the relevant view simply is not open.
func (s *Store[T]) Patch(key string, fn func(pages []Page[T]) []Page[T]) bool {
	tx := s.pages.Lock()
	prev, err := tx.Get(key)
	if err != nil {
		tx.Unlock()
		return false
	}
	next := fn(prev)
	tx.Set(key, next)
	tx.Unlock()

	s.notify(key, next)
	return true
}

// Snapshot returns a deep copy of the page list for key, suitable for a
// verbatim Restore after a failed mutation.
func (s *Store[T]) Snapshot(key string) ([]Page[T], bool) {
	tx := s.pages.Lock()
	defer tx.Unlock()

	pages, err := tx.Get(key)
	if err != nil {
		return nil, false
	}
	snap := make([]Page[T], len(pages))
	for i, p := range pages {
		snap[i] = p.Clone()
	}
	return snap, true
}

// Restore writes back a snapshot captured before an optimistic patch.
func (s *Store[T]) Restore(key string, snap []Page[T]) {
	s.Set(key, snap)
}

// Delete drops the key. Subscribers are notified with a nil list.
func (s *Store[T]) Delete(key string) {
	tx := s.pages.Lock()
	_ = tx.Del(key)
	tx.Unlock()

	s.notify(key, nil)
}

// Subscribe registers fn to run after every write to key. The returned
// function removes the subscription.
func (s *Store[T]) Subscribe(key string, fn func(pages []Page[T])) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func([]Page[T]))
	}
	s.subs[key][id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs[key], id)
		s.mu.Unlock()
	}
}

// BeginFetch derives a context for an in-flight read of key, cancelling any
// previous fetch still running for the same key.
func (s *Store[T]) BeginFetch(ctx context.Context, key string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.fetches[key]; ok {
		cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.fetches[key] = cancel
	return fetchCtx
}

// EndFetch releases the cancellation slot for key.
func (s *Store[T]) EndFetch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.fetches[key]; ok {
		cancel()
		delete(s.fetches, key)
	}
}

func (s *Store[T]) notify(key string, pages []Page[T]) {
	s.mu.Lock()
	handlers := make([]func([]Page[T]), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(pages)
	}
}

// Flatten joins pages into a single ordered sequence in page order.
func Flatten[T any](pages []Page[T]) []T {
	var out []T
	for _, p := range pages {
		out = append(out, p.Items...)
	}
	return out
}

// FlattenReversed joins pages in reverse page order, so the oldest fetched
// page comes first. Chat message lists render this way: page 1 holds the
// newest messages, later pages hold older history.
func FlattenReversed[T any](pages []Page[T]) []T {
	var out []T
	for i := len(pages) - 1; i >= 0; i-- {
		out = append(out, pages[i].Items...)
	}
	return out
}
