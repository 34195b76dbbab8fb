// Package observable provides a small owned value holder with change notification.
package observable

import "sync"

// Store holds a value of type T and notifies subscribers after every change.
// Subscribers run synchronously on the goroutine that made the change, one change
// at a time and in the order the changes were made, so the last value a subscriber
// saw is always the current one. Subscribers must not change the store.
type Store[T any] struct {
	// delivery is held from the value swap until every subscriber has run.
	delivery sync.Mutex

	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]func(T)
	order  []int
}

// New returns a store seeded with initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(value T) {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.Lock()
	s.value = value
	subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(subs, value)
}

// Update applies fn to the current value under the write lock and notifies subscribers
// with the result. fn must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) T {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.Lock()
	s.value = fn(s.value)
	value := s.value
	subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(subs, value)
	return value
}

// Subscribe registers fn, calls it once with the current value, and returns an
// unsubscribe func.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.delivery.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	value := s.value
	s.mu.Unlock()

	fn(value)
	s.delivery.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Subscribers reports how many subscribers are registered.
func (s *Store[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store[T]) snapshotLocked() []func(T) {
	subs := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		subs = append(subs, s.subs[id])
	}
	return subs
}

func notify[T any](subs []func(T), value T) {
	for _, fn := range subs {
		fn(value)
	}
}
