package middleware

import (
	"errors"
	"net/http"
	"strings"

	"ccmart/internal/infra/token"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

// *token.JWTIssuer が実装する
type TokenParser interface {
	Parse(raw string) (token.Claims, error)
}

// Bearerトークンを検証してclaimsをcontextに載せる
func AuthJWT(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, msg := bearerToken(c.Request().Header.Get("Authorization"))
			if msg != "" {
				return c.JSON(http.StatusUnauthorized, errorJSON(msg))
			}

			claims, err := parser.Parse(raw)
			switch {
			case errors.Is(err, token.ErrInvalidToken):
				return c.JSON(http.StatusUnauthorized, errorJSON("invalid or expired token"))
			case err != nil:
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, claims.UserID)
			c.Set(CtxUserRoleKey, string(claims.Role))
			c.Set(CtxTokenVersionKey, claims.TokenVersion)
			return next(c)
		}
	}
}

// 取り出せなければ401の文言を返す
func bearerToken(authz string) (string, string) {
	if authz == "" {
		return "", "access token required"
	}
	scheme, raw, ok := strings.Cut(authz, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return "", "unauthorized"
	}
	return raw, ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
