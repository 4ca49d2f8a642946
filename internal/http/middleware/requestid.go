package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the standard header name used to propagate request IDs.
	RequestIDHeader = "X-Request-ID"
)

type requestIDKey struct{}

// WithRequestID stores id in ctx so RequestID reuses it instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id carried by ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID ensures every outbound request carries X-Request-ID.
//
// Behavior:
// - Keeps an X-Request-ID already set by the caller.
// - Otherwise uses the id from the context, or a new UUID.
// - The id is put back into the request context for the middlewares below.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			id := req.Header.Get(RequestIDHeader)
			if id == "" {
				id = RequestIDFrom(req.Context())
			}
			if id == "" {
				id = uuid.NewString()
			}

			// RoundTrippers must not modify the caller's request.
			r := req.Clone(WithRequestID(req.Context(), id))
			r.Header.Set(RequestIDHeader, id)
			return next.RoundTrip(r)
		})
	}
}
