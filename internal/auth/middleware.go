package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// ACMEPrefix is served without authentication so certificates can be issued.
const ACMEPrefix = "/.well-known/acme-challenge/"

type ctxKey struct{}

// FromContext returns the authenticated key attached by Middleware.
func FromContext(ctx context.Context) (Key, bool) {
	k, ok := ctx.Value(ctxKey{}).(Key)
	return k, ok
}

// tokenFrom reads ?authKey= first, then an Authorization header. The header
// value is used as-is when it has no Bearer prefix.
func tokenFrom(r *http.Request) string {
	if k := r.URL.Query().Get("authKey"); k != "" {
		return k
	}
	h := r.Header.Get("Authorization")
	return strings.TrimPrefix(h, "Bearer ")
}

// Middleware rejects requests without a known key with 401 Unauthorized.
func Middleware(store *Store, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, ACMEPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			k, ok, err := store.Authenticate(tokenFrom(r))
			if err != nil {
				log.Error().Str("event", "auth_error").Err(err).Send()
			}
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, k)))
		})
	}
}
