package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-prompt-market/internal/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

// Authenticate verifies the bearer token and stores its subject in the
// request context. Without required, a request with no Authorization
// header passes through anonymously; a present but bad token is always 401.
func Authenticate(tokens *auth.Tokens, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.BearerToken(r.Header.Get("Authorization"))
			if errors.Is(err, auth.ErrNoToken) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			sub, err := tokens.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, sub)))
		})
	}
}

// UserID is the authenticated subject, empty for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
