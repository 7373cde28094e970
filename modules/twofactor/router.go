package twofactor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mountable is implemented by services that provide their own router.
type Mountable interface {
	Handle() http.Handler
}

// Router mounts svc under /2fa.
//
//	r := chi.NewRouter()
//	r.Mount("/", twofactor.Router(twofactor.NewService(engine, twofactor.WithLogger(log))))
func Router(svc Mountable) chi.Router {
	r := chi.NewRouter()
	r.Mount("/2fa", svc.Handle())
	return r
}
