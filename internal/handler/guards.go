package handler

import (
	"ccmart/internal/middleware"
	"ccmart/internal/repository"

	"github.com/labstack/echo/v4"
)

// ルートごとに付けるミドルウェアの組
type Guards struct {
	// AuthJWT → ActiveUserGuard
	Auth []echo.MiddlewareFunc
	// Auth + AdminRoleGuard
	Admin []echo.MiddlewareFunc
}

func NewGuards(parser middleware.TokenParser, userRepo repository.UserRepository) Guards {
	auth := []echo.MiddlewareFunc{
		middleware.AuthJWT(parser),
		middleware.ActiveUserGuard(userRepo),
	}
	admin := append(append([]echo.MiddlewareFunc{}, auth...), middleware.AdminRoleGuard())
	return Guards{Auth: auth, Admin: admin}
}
