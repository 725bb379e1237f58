package transport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lk-keep-fighting/jsonpage/internal/config"
	"github.com/lk-keep-fighting/jsonpage/model"
)

// Authenticator returns middleware that validates HS256 bearer tokens and
// stores their claims in the request context. When auth is disabled the
// middleware passes every request through anonymously.
func Authenticator(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		secret := []byte(cfg.Secret)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				WriteError(w, err)
				return
			}

			opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			claims := jwt.MapClaims{}
			_, parseErr := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return secret, nil
			}, opts...)
			if parseErr != nil {
				WriteError(w, model.NewUnauthorizedError(fmt.Sprintf("invalid token: %v", parseErr)))
				return
			}

			ctx := WithClaims(r.Context(), map[string]any(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, *model.ErrorEnvelope) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", model.NewUnauthorizedError("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", model.NewUnauthorizedError("malformed Authorization header")
	}
	return parts[1], nil
}
