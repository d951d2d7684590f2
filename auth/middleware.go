// This file, `middleware.go`, defines HTTP middleware related to authentication.
package auth

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/user/akun-go/apperror"
)

// BearerToken returns the token from an `Authorization: Bearer <token>` header, or "" when
// the header is absent or not in that form.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate verifies the bearer token's signature and expiry and stores the resulting
// Session in the request context. Requests without a valid token get 401.
func Authenticate(issuer *TokenIssuer, log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteError(w, r, log, apperror.NewUnauthorizedError("Unauthorized", nil))
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				WriteError(w, r, log, apperror.NewUnauthorizedError("Unauthorized", err))
				return
			}

			ctx := NewContextWithSession(r.Context(), Session{Claims: claims, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
