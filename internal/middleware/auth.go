package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"schoolapi/internal/logging"
	"schoolapi/internal/models"
	"schoolapi/internal/tokens"
)

const claimsKey = "auth_claims"

// Auth validates access tokens on protected routes. It is deliberately
// stateless: signature plus expiry decide, the ledger is never consulted,
// so a single access token cannot be revoked before its short expiry.
type Auth struct {
	Codec *tokens.Codec
}

func NewAuth(codec *tokens.Codec) *Auth {
	return &Auth{Codec: codec}
}

// RequireAuth extracts the bearer token from the Authorization header.
// No header means no credential was presented at all: 401. A presented
// token that fails to decode: 403.
func (m *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Codec.Parse(token, tokens.ProfileAccess)
		if err != nil {
			logging.FromContext(c.Request().Context()).
				Warn("access_token_rejected", "error", err)
			return echo.NewHTTPError(http.StatusForbidden, "invalid token")
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

// RequireRoles allows only the listed roles through. It must run after
// RequireAuth; absent claims mean the gate was misordered or the request
// never authenticated, which maps to 401.
func RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			for _, r := range roles {
				if claims.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}

// ClaimsFrom returns the authenticated claims attached by RequireAuth.
func ClaimsFrom(c echo.Context) (*tokens.Claims, bool) {
	claims, ok := c.Get(claimsKey).(*tokens.Claims)
	return claims, ok
}
