// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are typically set by middleware (or by the queue consumer when it
// picks up a message) and consumed by services. The package stays free of
// net/http so services can import it without pulling in transport code.
//
// The clock accessor exists so freshness windows and date arithmetic are
// deterministic in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey      struct{}
	localAuthorityKey struct{}
	requestTimeKey    struct{}
)

// WithRequestID attaches a correlation id for the current request or message.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" when none was set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithLocalAuthority attaches the authenticated local authority id.
func WithLocalAuthority(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, localAuthorityKey{}, id)
}

// LocalAuthority returns the local authority id, or 0 when none was set.
func LocalAuthority(ctx context.Context) int {
	v, _ := ctx.Value(localAuthorityKey{}).(int)
	return v
}

// WithTime pins the request clock. Tests use this to freeze "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
