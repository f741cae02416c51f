package session

import (
	"context"
	"net/http"
)

const (
	CookieName = "session_id"
	HeaderName = "X-Session-ID"
)

type ctxKey struct{}

// ExtractKey returns the shop session key of the buyer, read from the
// session cookie or, for API clients, from the X-Session-ID header.
func ExtractKey(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get(HeaderName)
}

// Middleware stores the session key in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := ExtractKey(r); key != "" {
			r = r.WithContext(WithKey(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}

func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

func KeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(ctxKey{}).(string)
	return key
}
