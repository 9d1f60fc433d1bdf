// Package requestcontext holds request-scoped values shared by middleware and
// handlers. Keys are unexported so only this package can set them.
package requestcontext

import (
	"context"
	"time"
)

type (
	ctxKeyRequestID   struct{}
	ctxKeyRequestTime struct{}
	ctxKeyClientIP    struct{}
	ctxKeyUserAgent   struct{}
	ctxKeyIdentity    struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestID returns the request ID, or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// WithTime pins "now" for everything running under ctx. Tests use it to
// drive expiry without sleeping.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyRequestTime{}, t)
}

// Now returns the request-scoped time, falling back to the wall clock for
// workers and tests that never set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithClientMetadata stores the resolved client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP{}, clientIP)
	return context.WithValue(ctx, ctxKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ctxKeyClientIP{}).(string)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(ctxKeyUserAgent{}).(string)
	return ua
}

// WithIdentity stores the caller's throttling identity key.
func WithIdentity(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, key)
}

func Identity(ctx context.Context) string {
	key, _ := ctx.Value(ctxKeyIdentity{}).(string)
	return key
}
