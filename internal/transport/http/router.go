// Package httptransport assembles the chi router: ambient middleware, public
// probes, and the authenticated API surface built from the per-module
// handlers.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/requestcontext"
)

// Registrar mounts a module's routes; each handler package implements it.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires middleware and mounts each module's routes behind the
// bearer-token gate. Probes and metrics stay outside it.
func NewRouter(validator *auth.Validator, logger *slog.Logger, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(propagateRequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(auth.RequirePrincipal(validator, logger))
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}

// propagateRequestID copies chi's request id into the request context keys
// the service layer logs with.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = requestcontext.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
