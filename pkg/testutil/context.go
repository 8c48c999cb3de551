package testutil

import (
	"context"
	"net/http"

	"sigil/pkg/requestcontext"
)

// WithPrincipal adds an authenticated principal to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithPrincipal(req *http.Request, id, role string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), requestcontext.Principal{ID: id, Role: role})
	return req.WithContext(ctx)
}

// ContextWithPrincipal builds a bare context carrying a principal, for service
// tests that don't run the HTTP middleware chain.
func ContextWithPrincipal(id, role string) context.Context {
	return requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{ID: id, Role: role})
}
