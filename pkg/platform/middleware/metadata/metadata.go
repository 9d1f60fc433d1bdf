// Package metadata attaches client metadata and the identity key to the
// request context.
package metadata

import (
	"net/http"

	"gatehouse/internal/identity"
	"gatehouse/pkg/requestcontext"
)

// Middleware resolves client metadata once per request so downstream
// limiters, loggers and handlers agree on the same identity.
type Middleware struct {
	resolver identity.Resolver
}

// NewMiddleware creates the middleware. A zero Resolver reads only
// forwarding headers.
func NewMiddleware(resolver identity.Resolver) *Middleware {
	return &Middleware{resolver: resolver}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), m.resolver.ClientIP(r), r.Header.Get("User-Agent"))
		ctx = requestcontext.WithIdentity(ctx, m.resolver.Identify(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
