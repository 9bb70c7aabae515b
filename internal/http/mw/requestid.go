package mw

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
)

const (
	// RequestIDKey is the context key for the request id.
	RequestIDKey ContextKey = "request_id"
	// RequestIDHeader is the header carrying the request id.
	RequestIDHeader = "X-Request-Id"
)

// RequestID returns a middleware that assigns a ULID to each request.
// An inbound X-Request-Id survives so ids can be traced across services.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = ulid.Make().String()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), RequestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID retrieves the request id from the context, "" when absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
