package handler

import (
	"context"
	"net/http"
)

// Context is the request context plus access to the request and writer.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

type httpContext struct {
	context.Context
	w http.ResponseWriter
	r *http.Request
}

// NewContext binds w and r. Deadline, cancellation and values come from
// r.Context().
func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return &httpContext{Context: r.Context(), w: w, r: r}
}

func (c *httpContext) Request() *http.Request              { return c.r }
func (c *httpContext) ResponseWriter() http.ResponseWriter { return c.w }

// ContextKey is a collision free context key.
type ContextKey struct{ name string }

func NewContextKey(name string) *ContextKey { return &ContextKey{name: name} }

func (k *ContextKey) String() string { return k.name }

// ContextValue returns the value under key, or the zero T.
func ContextValue[T any](ctx context.Context, key any) T {
	v, _ := ctx.Value(key).(T)
	return v
}

// ContextValueOK also reports whether a T was stored under key.
func ContextValueOK[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}
