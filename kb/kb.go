// Package kb provides a thread-safe keyed store with change notifications.
// The world model uses it as its entity arena and places use it as their
// registry.
package kb

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
)

var (
	ErrExists   = errors.New("already exists")
	ErrNotFound = errors.New("not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventAdded EventType = iota
	EventUpdated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event[K comparable, V any] struct {
	Type  EventType
	Key   K
	Value V
}

// KnowledgeBase is an in-memory, thread-safe store. Iteration follows
// insertion order.
type KnowledgeBase[K comparable, V any] struct {
	mu sync.RWMutex

	items map[K]V
	order []K

	subs   map[int]func(Event[K, V])
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase[K comparable, V any]() *KnowledgeBase[K, V] {
	return &KnowledgeBase[K, V]{
		items: make(map[K]V),
		subs:  make(map[int]func(Event[K, V])),
	}
}

// Add stores v under k. It returns an error if the key already exists.
func (kb *KnowledgeBase[K, V]) Add(k K, v V) error {
	kb.mu.Lock()
	if _, exists := kb.items[k]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrExists, k)
	}
	kb.items[k] = v
	kb.order = append(kb.order, k)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, Event[K, V]{Type: EventAdded, Key: k, Value: v})
	return nil
}

// Get returns the value stored under k.
func (kb *KnowledgeBase[K, V]) Get(k K) (V, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	v, ok := kb.items[k]
	return v, ok
}

// Has reports whether k is present.
func (kb *KnowledgeBase[K, V]) Has(k K) bool {
	_, ok := kb.Get(k)
	return ok
}

// Update replaces the value under k and notifies subscribers.
func (kb *KnowledgeBase[K, V]) Update(k K, v V) error {
	kb.mu.Lock()
	if _, ok := kb.items[k]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotFound, k)
	}
	kb.items[k] = v
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, Event[K, V]{Type: EventUpdated, Key: k, Value: v})
	return nil
}

// Touch notifies subscribers that the value under k changed in place.
func (kb *KnowledgeBase[K, V]) Touch(k K) error {
	kb.mu.RLock()
	v, ok := kb.items[k]
	subs := kb.snapshotSubs()
	kb.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, k)
	}

	notify(subs, Event[K, V]{Type: EventUpdated, Key: k, Value: v})
	return nil
}

// Remove deletes k and returns the removed value.
func (kb *KnowledgeBase[K, V]) Remove(k K) (V, error) {
	kb.mu.Lock()
	v, ok := kb.items[k]
	if !ok {
		kb.mu.Unlock()
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrNotFound, k)
	}
	delete(kb.items, k)
	for i, key := range kb.order {
		if key == k {
			kb.order = append(kb.order[:i], kb.order[i+1:]...)
			break
		}
	}
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	notify(subs, Event[K, V]{Type: EventRemoved, Key: k, Value: v})
	return v, nil
}

// Len returns the number of stored values.
func (kb *KnowledgeBase[K, V]) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.items)
}

// List returns a snapshot slice of all values in insertion order.
func (kb *KnowledgeBase[K, V]) List() []V {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]V, 0, len(kb.order))
	for _, k := range kb.order {
		res = append(res, kb.items[k])
	}
	return res
}

// All iterates over a snapshot of the store in insertion order.
func (kb *KnowledgeBase[K, V]) All() iter.Seq2[K, V] {
	kb.mu.RLock()
	keys := append([]K(nil), kb.order...)
	vals := make([]V, len(keys))
	for i, k := range keys {
		vals[i] = kb.items[k]
	}
	kb.mu.RUnlock()

	return func(yield func(K, V) bool) {
		for i, k := range keys {
			if !yield(k, vals[i]) {
				return
			}
		}
	}
}

// Clear removes every value without notifying subscribers.
func (kb *KnowledgeBase[K, V]) Clear() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.items = make(map[K]V)
	kb.order = nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase[K, V]) Subscribe(fn func(Event[K, V])) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase[K, V]) snapshotSubs() []func(Event[K, V]) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(Event[K, V]), len(ids))
	for i, id := range ids {
		subs[i] = kb.subs[id]
	}
	return subs
}

// notify runs outside the lock to avoid deadlocks.
func notify[K comparable, V any](subs []func(Event[K, V]), ev Event[K, V]) {
	for _, sub := range subs {
		sub(ev)
	}
}
