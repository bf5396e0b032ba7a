package client

import (
	"strings"
	"sync"
)

const DefaultHistorySize = 10

// History is a bounded most-recent-first list of executed search terms.
type History struct {
	mu    sync.Mutex
	max   int
	items []string
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Push moves text to the front, dropping an earlier copy and the oldest
// entry beyond the bound. Blank text is ignored.
func (h *History) Push(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.items)+1)
	out = append(out, text)
	for _, item := range h.items {
		if item != text {
			out = append(out, item)
		}
	}
	if len(out) > h.max {
		out = out[:h.max]
	}
	h.items = out
}

func (h *History) Items() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.items...)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
}
