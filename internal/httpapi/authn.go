package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/metizror/marketforce-api/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Admin operations live under this prefix; everything else is public.
const protectedPrefix = "/v1/admin/"

// withAuth guards protected paths: the bearer token must validate and its
// subject must resolve to an administrative principal. Customer tokens are
// cryptographically valid but never authorize admin operations.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, protectedPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		admin, err := a.identity.AuthenticateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrUnauthorized):
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "internal_error", "authentication error")
			}
			return
		}

		ctx := identity.ContextWithPrincipal(r.Context(), admin.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
