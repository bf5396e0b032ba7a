package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/gallery/internal/query"
)

const DefaultDebounce = 300 * time.Millisecond

var ErrClosed = errors.New("search session closed")

// Phase is the controller's position in a search. Succeeded, Failed and
// Cancelled record how the last search ended; like Idle they are resting
// phases in which the controller waits for the next input, and SetQuery,
// Search and LoadMore are accepted from any of them.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDebouncing
	PhaseFetching
	PhaseSucceeded
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseFetching:
		return "fetching"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Options struct {
	Debounce    time.Duration
	CacheTTL    time.Duration
	CacheSize   int
	HistorySize int
	Limits      query.Limits
	Logger      *slog.Logger
}

// Controller is one search session. Within a session the most recently
// issued query always wins: starting a search invalidates the token of the
// request before it, and a result is applied only while its token is still
// current. Independent searches need independent Controllers.
type Controller struct {
	mu sync.Mutex

	api      Searcher
	store    *MediaStore
	cache    *Cache
	history  *History
	debounce *Debouncer
	limits   query.Limits
	logger   *slog.Logger

	session context.Context
	stop    context.CancelFunc
	closed  bool

	text        string
	params      query.Params
	applied     query.SearchQuery
	hasApplied  bool
	token       *Token
	phase       Phase
	debounceGen uint64
}

func NewController(api Searcher, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Limits.Max <= 0 {
		opts.Limits = query.DefaultLimits
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	session, stop := context.WithCancel(context.Background())
	return &Controller{
		api:      api,
		store:    NewMediaStore(),
		cache:    NewCache(opts.CacheSize, opts.CacheTTL),
		history:  NewHistory(opts.HistorySize),
		debounce: NewDebouncer(opts.Debounce),
		limits:   opts.Limits,
		logger:   opts.Logger.With("component", "search-controller"),
		session:  session,
		stop:     stop,
	}
}

func (c *Controller) Store() *MediaStore {
	return c.store
}

func (c *Controller) State() State {
	return c.store.Snapshot()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Text is the last value passed to SetQuery or Search.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Controller) History() []string {
	return c.history.Items()
}

// SetParams sets the filters used by the next debounced search. Text and
// Page in p are ignored.
func (c *Controller) SetParams(p query.Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Text, p.Page = "", 0
	c.params = p
}

func (c *Controller) Params() query.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetQuery records text and restarts the debounce window. Blank text clears
// the results without touching the network.
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.text = text
	if strings.TrimSpace(text) == "" {
		c.clearLocked()
		return
	}

	c.invalidateLocked()
	c.debounceGen++
	gen := c.debounceGen
	params := c.params
	c.phase = PhaseDebouncing
	c.debounce.Start(func() { c.fireDebounced(gen, text, params) })
}

func (c *Controller) fireDebounced(gen uint64, text string, params query.Params) {
	c.mu.Lock()
	if c.closed || gen != c.debounceGen {
		c.mu.Unlock()
		return
	}
	if err := c.searchLocked(c.session, text, params, 1); err != nil {
		c.logger.Debug("debounced search ended", "query", text, "error", err)
	}
}

// Search runs a query immediately, cancelling any pending debounce and any
// request in flight. Page 1 is served from the cache when possible.
// Superseded requests return nil; a cancelled ctx returns its error.
func (c *Controller) Search(ctx context.Context, text string, params query.Params, page int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.debounce.Cancel()
	c.debounceGen++
	c.text = text
	p := params
	p.Text, p.Page = "", 0
	c.params = p
	return c.searchLocked(ctx, text, params, page)
}

// searchLocked is entered with c.mu held and returns with it released.
func (c *Controller) searchLocked(ctx context.Context, text string, params query.Params, page int) error {
	params.Text = text
	params.Page = page
	q := c.limits.Build(params)

	c.invalidateLocked()

	if q.Page == 1 {
		if res, ok := c.cache.Get(q.CacheKey()); ok {
			c.history.Push(q.Text)
			c.store.Replace(res.Items, res.Pagination)
			c.applied, c.hasApplied = q, true
			c.phase = PhaseSucceeded
			c.mu.Unlock()
			return nil
		}
	}
	return c.fetchLocked(ctx, q)
}

// LoadMore appends the next page of the query whose results are on display,
// which after a failed search is still the last successful one. It does
// nothing when there is no next page, a request is already in flight, or a
// new query is waiting out its debounce.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.canLoadMoreLocked() {
		c.mu.Unlock()
		return nil
	}
	q := c.applied.WithPage(c.store.Snapshot().Pagination.Page + 1)
	return c.fetchLocked(ctx, q)
}

func (c *Controller) CanLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canLoadMoreLocked()
}

func (c *Controller) canLoadMoreLocked() bool {
	if c.closed || !c.hasApplied || c.token != nil || c.phase == PhaseDebouncing {
		return false
	}
	return c.store.Snapshot().HasMore
}

// fetchLocked is entered with c.mu held and returns with it released.
func (c *Controller) fetchLocked(ctx context.Context, q query.SearchQuery) error {
	tok := newToken(ctx, c.session)
	c.token = tok
	c.phase = PhaseFetching
	if q.Page == 1 {
		c.history.Push(q.Text)
	}
	c.store.SetLoading(true)
	c.mu.Unlock()

	res, err := c.api.Search(tok.Context(), q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !tok.Valid() || c.token != tok {
		return nil
	}
	c.token = nil
	ctxErr := tok.Context().Err()
	tok.release()

	if err != nil {
		if ctxErr != nil {
			c.phase = PhaseCancelled
			c.store.SetLoading(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ctxErr
		}
		c.phase = PhaseFailed
		c.store.SetError(err)
		c.logger.Warn("search failed", "query", q.Text, "page", q.Page, "error", err)
		return err
	}

	switch {
	case q.Page == 1:
		c.cache.Put(q.CacheKey(), res)
		c.store.Replace(res.Items, res.Pagination)
	case c.hasApplied && c.applied.CacheKey() == q.CacheKey():
		c.store.Append(res.Items, res.Pagination)
	default:
		// A later page of a different query starts a new list.
		c.store.Replace(res.Items, res.Pagination)
	}
	c.applied, c.hasApplied = q, true
	c.phase = PhaseSucceeded
	return nil
}

// ClearResults empties the store and aborts any pending or in-flight search.
func (c *Controller) ClearResults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	c.debounce.Cancel()
	c.debounceGen++
	c.invalidateLocked()
	c.applied, c.hasApplied = query.SearchQuery{}, false
	c.store.Reset()
	c.phase = PhaseIdle
}

func (c *Controller) invalidateLocked() {
	if c.token == nil {
		return
	}
	c.token.Invalidate()
	c.token = nil
	c.store.SetLoading(false)
}

// Close ends the session. Pending and in-flight searches are abandoned and
// later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.debounce.Cancel()
	c.debounceGen++
	c.invalidateLocked()
	c.stop()
	c.cache.Purge()
	c.phase = PhaseCancelled
}
