package handler

import "net/http"

// HandlerFunc serves a request whose body was already decoded into req.
type HandlerFunc[R any] func(ctx Context, req R) Response

// Response writes itself. A returned error goes to the ErrorHandler, so
// Render must not write anything before failing.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind decodes r into v, which is always a pointer to the request type.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes the response for a failed request.
type ErrorHandler func(ctx Context, err error)

type wrapConfig struct {
	bind         Bind
	errorHandler ErrorHandler
}

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

// WithBinder decodes the request before the handler runs. Without one the
// handler receives the zero value.
func WithBinder(b Bind) WrapOption {
	return func(c *wrapConfig) {
		c.bind = b
	}
}

// WithErrorHandler replaces the default handler, which renders JSONError
// without logging.
func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

func renderError(ctx Context, err error) {
	_ = JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
}

// Wrap adapts h to net/http. Binding, nil responses and render failures all
// end up in the error handler.
func Wrap[R any](h HandlerFunc[R], opts ...WrapOption) http.HandlerFunc {
	cfg := wrapConfig{errorHandler: renderError}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(w, r)

		var req R
		if cfg.bind != nil {
			if err := cfg.bind(r, &req); err != nil {
				cfg.errorHandler(ctx, err)
				return
			}
		}

		resp := h(ctx, req)
		if resp == nil {
			cfg.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(ctx, err)
		}
	}
}
