package client

import (
	"context"
	"sync/atomic"
)

// Token guards one in-flight request. Invalidate both cancels the request
// context and marks the token so a late result is never applied.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
	valid  atomic.Bool
}

// newToken derives a request context from ctx that is also cancelled when
// session ends.
func newToken(ctx, session context.Context) *Token {
	tctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	t := &Token{
		ctx: tctx,
		cancel: func() {
			stop()
			cancel()
		},
	}
	t.valid.Store(true)
	return t
}

func (t *Token) Context() context.Context {
	return t.ctx
}

func (t *Token) Valid() bool {
	return t.valid.Load()
}

func (t *Token) Invalidate() {
	t.valid.Store(false)
	t.cancel()
}

// release frees the context of a completed request without invalidating it.
func (t *Token) release() {
	t.cancel()
}
