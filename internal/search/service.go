// Package search resolves a normalized SearchQuery against a store.Repository
// and returns one page of records with total-count pagination.
//
// The count and the page are two independent reads issued concurrently with
// no shared snapshot. Under concurrent writes the total may disagree with the
// page contents for a single response.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/gallery/internal/metrics"
	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/store"
)

var ErrRetrievalFailure = errors.New("retrieval failure")

type Page struct {
	Items      []store.Media
	Pagination query.Pagination
}

func (p *Page) HasMore() bool {
	return p.Pagination.HasMore()
}

type Service struct {
	repo   store.Repository
	logger *slog.Logger
	limits query.Limits
}

func NewService(repo store.Repository, logger *slog.Logger, limits query.Limits) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With("component", "search"), limits: limits}
}

func (s *Service) Search(ctx context.Context, q query.SearchQuery) (*Page, error) {
	q = s.limits.Normalize(q)
	filter := FilterFor(q)
	opts := OptionsFor(q)
	start := time.Now()

	var (
		total int
		items []store.Media
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, filter)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		found, err := s.repo.Find(gctx, filter, opts)
		if err != nil {
			return fmt.Errorf("find: %w", err)
		}
		items = found
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.SearchRequestsTotal.WithLabelValues(string(opts.Sort), "cancelled").Inc()
			return nil, ctxErr
		}
		metrics.SearchRequestsTotal.WithLabelValues(string(opts.Sort), "error").Inc()
		s.logger.Error("search failed", "query", q.Text, "page", q.Page, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailure, err)
	}
	if items == nil {
		items = []store.Media{}
	}

	metrics.SearchRequestsTotal.WithLabelValues(string(opts.Sort), "ok").Inc()
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchResultsTotal.Observe(float64(total))
	s.logger.Debug("search",
		"query", q.Text,
		"type", q.Type,
		"tags", q.Tags,
		"sort", opts.Sort,
		"page", q.Page,
		"limit", q.Limit,
		"total", total,
		"returned", len(items),
		"duration", time.Since(start),
	)

	return &Page{Items: items, Pagination: query.NewPagination(q.Page, q.Limit, total)}, nil
}

func FilterFor(q query.SearchQuery) store.Filter {
	f := store.Filter{
		Text: q.Text,
		Tags: q.Tags,
	}
	switch q.Type {
	case query.TypeImage:
		f.Type = store.MediaImage
	case query.TypeVideo:
		f.Type = store.MediaVideo
	}
	switch q.Status {
	case query.StatusInactive:
		f.Visibility = store.VisibleInactive
	case query.StatusAll:
		f.Visibility = store.VisibleAll
	default:
		f.Visibility = store.VisibleActive
	}
	return f
}

// OptionsFor orders by relevance when there is text and no explicit sort
// field, otherwise by the requested field (createdAt when unset).
func OptionsFor(q query.SearchQuery) store.FindOptions {
	opts := store.FindOptions{
		Desc:  q.SortOrder != query.SortAsc,
		Limit: q.Limit,
		Skip:  (q.Page - 1) * q.Limit,
	}
	switch {
	case q.HasText() && q.SortBy == "":
		opts.Sort = store.SortRelevance
		opts.Desc = true
	case q.SortBy == query.SortByTitle:
		opts.Sort = store.SortTitle
	default:
		opts.Sort = store.SortCreatedAt
	}
	return opts
}
