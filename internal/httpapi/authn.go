package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"factura.org/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearer       = "Bearer "
	apiKeyHeader = "X-Api-Key"
)

// Webhooks authenticate with their signature, not a token; probes and the
// token mint endpoint stay open.
var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/token",
	"/",
}
var publicPrefixes = []string{
	"/webhooks/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get(apiKeyHeader); key != "" && a.apiKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			// Trusted automation acts with platform-wide scope.
			id := auth.Identity{UID: "api-key", Claims: auth.Claims{PlatformAdmin: true}}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		id, err := a.provider.VerifyToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid token")
			} else {
				writeError(w, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

// caller returns the authenticated identity; nil means unauthenticated, which
// the guards translate into the right taxonomy error.
func caller(r *http.Request) *auth.Identity {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	return id
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

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
