package twofactor

import (
	"context"
	"net/http"
	"strings"

	"github.com/campusmind/twofactor/handler"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

// Headers set by the CampusMind gateway after primary authentication.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Identity is the authenticated caller.
type Identity struct {
	ID    string
	Email string
}

// IdentityFunc resolves the caller of a request. It returns
// twofactor.ErrMissingIdentity when the request is not authenticated.
type IdentityFunc func(r *http.Request) (Identity, error)

// HeaderIdentity trusts the gateway headers. Only use it behind a proxy that
// strips these headers from client requests.
func HeaderIdentity() IdentityFunc {
	return func(r *http.Request) (Identity, error) {
		id := Identity{
			ID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		}
		if id.ID == "" {
			return Identity{}, twofactor.ErrMissingIdentity
		}
		return id, nil
	}
}

var identityKey = handler.NewContextKey("twofactor.identity")

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by the module middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	return handler.ContextValueOK[Identity](ctx, identityKey)
}

// requireIdentity resolves the caller once per request and rejects
// unauthenticated requests through the error handler.
func requireIdentity(resolve IdentityFunc, onError handler.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolve(r)
			if err != nil {
				onError(handler.NewContext(w, r), err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
