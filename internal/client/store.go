package client

import (
	"sync"

	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/store"
)

// State is the read side of a MediaStore.
type State struct {
	Items      []store.Media
	Loading    bool
	Err        error
	Pagination query.Pagination
	HasMore    bool
}

// Message is the user-visible error text, empty when there is no error.
func (s State) Message() string {
	return ErrorMessage(s.Err)
}

// MediaStore holds the last known good result list of one search session.
// Subscribers are called synchronously after every change and must not call
// back into the Controller that owns the store.
type MediaStore struct {
	mu         sync.RWMutex
	items      []store.Media
	pagination query.Pagination
	loading    bool
	err        error

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

func NewMediaStore() *MediaStore {
	return &MediaStore{items: []store.Media{}, subs: make(map[int]func(State))}
}

// Replace overwrites the list and pagination with a first page.
func (s *MediaStore) Replace(items []store.Media, p query.Pagination) {
	s.mu.Lock()
	s.items = append(make([]store.Media, 0, len(items)), items...)
	s.pagination = p
	s.loading = false
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

// Append adds a later page after the items already held.
func (s *MediaStore) Append(items []store.Media, p query.Pagination) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.pagination = p
	s.loading = false
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

func (s *MediaStore) Reset() {
	s.mu.Lock()
	s.items = []store.Media{}
	s.pagination = query.Pagination{}
	s.loading = false
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

func (s *MediaStore) SetLoading(loading bool) {
	s.mu.Lock()
	changed := s.loading != loading
	s.loading = loading
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// SetError records a failure and leaves the items in place.
func (s *MediaStore) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

func (s *MediaStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Items:      append(make([]store.Media, 0, len(s.items)), s.items...),
		Loading:    s.loading,
		Err:        s.err,
		Pagination: s.pagination,
		HasMore:    s.pagination.HasMore(),
	}
}

func (s *MediaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *MediaStore) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *MediaStore) notify() {
	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	state := s.Snapshot()
	for _, fn := range fns {
		fn(state)
	}
}
