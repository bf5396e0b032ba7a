package client

import (
	"context"
	"sync"
)

// Trigger turns visibility reports for a sentinel at the end of a result
// list into load-more calls. It fires when the sentinel becomes visible and
// canLoad allows it, and never while a previous load is still running.
type Trigger struct {
	mu      sync.Mutex
	visible bool
	loading bool
	canLoad func() bool
	load    func(ctx context.Context) error
}

func NewTrigger(canLoad func() bool, load func(ctx context.Context) error) *Trigger {
	return &Trigger{canLoad: canLoad, load: load}
}

// ForController wires a Trigger to c.LoadMore.
func ForController(c *Controller) *Trigger {
	return NewTrigger(c.CanLoadMore, c.LoadMore)
}

// SetVisible reports the sentinel's visibility. Only a hidden to visible
// transition can fire a load; it reports whether one ran.
func (t *Trigger) SetVisible(ctx context.Context, visible bool) (bool, error) {
	t.mu.Lock()
	edge := visible && !t.visible
	t.visible = visible
	t.mu.Unlock()
	if !edge {
		return false, nil
	}
	return t.fire(ctx)
}

// Recheck fires again if the sentinel is still visible, for example after a
// short page left it on screen.
func (t *Trigger) Recheck(ctx context.Context) (bool, error) {
	t.mu.Lock()
	visible := t.visible
	t.mu.Unlock()
	if !visible {
		return false, nil
	}
	return t.fire(ctx)
}

func (t *Trigger) fire(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.loading || !t.canLoad() {
		t.mu.Unlock()
		return false, nil
	}
	t.loading = true
	t.mu.Unlock()

	err := t.load(ctx)

	t.mu.Lock()
	t.loading = false
	t.mu.Unlock()
	return true, err
}
