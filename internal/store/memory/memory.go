// Package memory is an in-process Repository used for local development and
// tests. Text relevance approximates the weighted text index of the mongo
// backend: each query term found in the title scores 10, in a tag 5 and in
// the description 1. A record matches when any term scores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/gallery/internal/store"
)

const (
	weightTitle       = 10
	weightTags        = 5
	weightDescription = 1
)

type Store struct {
	mu    sync.RWMutex
	items map[string]store.Media
	now   func() time.Time
}

func New() *Store {
	return &Store{items: make(map[string]store.Media), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Put stores m as-is, replacing any record with the same id.
func (s *Store) Put(m store.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[m.ID] = clone(m)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Find(ctx context.Context, f store.Filter, opts store.FindOptions) ([]store.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := s.match(f)
	sortMedia(matched, opts)

	opts.Skip = max(opts.Skip, 0)
	if opts.Skip >= len(matched) {
		return []store.Media{}, nil
	}
	matched = matched[opts.Skip:]
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.match(f)), nil
}

func (s *Store) Get(ctx context.Context, id string, includeInactive bool) (*store.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[id]
	if !ok || (!m.IsActive && !includeInactive) {
		return nil, store.ErrNotFound
	}
	out := clone(m)
	return &out, nil
}

func (s *Store) Create(ctx context.Context, in store.MediaCreate) (*store.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := store.NewMedia(store.NewID(), in, s.now())
	s.mu.Lock()
	s.items[m.ID] = m
	s.mu.Unlock()
	out := clone(m)
	return &out, nil
}

func (s *Store) Update(ctx context.Context, id string, upd store.MediaUpdate) (*store.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || !m.IsActive {
		return nil, store.ErrNotFound
	}
	m.Apply(upd, s.now())
	s.items[id] = m
	out := clone(m)
	return &out, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) (*store.Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || m.IsActive == active {
		return nil, store.ErrNotFound
	}
	m.IsActive = active
	m.UpdatedAt = s.now()
	s.items[id] = m
	out := clone(m)
	return &out, nil
}

func (s *Store) ListTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = store.NormalizeTag(prefix)
	s.mu.RLock()
	set := make(map[string]struct{})
	for _, m := range s.items {
		if !m.IsActive {
			continue
		}
		for _, t := range m.Tags {
			if strings.HasPrefix(t, prefix) {
				set[t] = struct{}{}
			}
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) match(f store.Filter) []store.Media {
	terms := strings.Fields(strings.ToLower(f.Text))

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Media, 0, len(s.items))
	for _, m := range s.items {
		switch f.Visibility {
		case store.VisibleAll:
		case store.VisibleInactive:
			if m.IsActive {
				continue
			}
		default:
			if !m.IsActive {
				continue
			}
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if len(f.Tags) > 0 && !store.MatchesAnyTag(m.Tags, f.Tags) {
			continue
		}
		m.Score = 0
		if len(terms) > 0 {
			m.Score = score(m, terms)
			if m.Score == 0 {
				continue
			}
		}
		out = append(out, clone(m))
	}
	return out
}

func score(m store.Media, terms []string) float64 {
	title := strings.ToLower(m.Title)
	desc := strings.ToLower(m.Description)
	var total float64
	for _, term := range terms {
		if strings.Contains(title, term) {
			total += weightTitle
		}
		for _, tag := range m.Tags {
			if strings.Contains(tag, term) {
				total += weightTags
				break
			}
		}
		if strings.Contains(desc, term) {
			total += weightDescription
		}
	}
	return total
}

func sortMedia(items []store.Media, opts store.FindOptions) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		var c int
		switch opts.Sort {
		case store.SortRelevance:
			// Higher scores first regardless of direction.
			switch {
			case a.Score > b.Score:
				c = -1
			case a.Score < b.Score:
				c = 1
			}
		case store.SortTitle:
			c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
			if opts.Desc {
				c = -c
			}
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
			if opts.Desc {
				c = -c
			}
		}
		if c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

func clone(m store.Media) store.Media {
	m.Tags = append([]string{}, m.Tags...)
	return m
}
