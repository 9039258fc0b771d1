package middleware

import (
	"net/http"

	"ccmart/internal/domain/model"
	"ccmart/internal/repository"

	"github.com/labstack/echo/v4"
)

// ユーザーが存在して有効で、JWTのtvとDBのtoken_versionが一致するか確認。
// roleはDBの値で上書きする（降格を即時反映）
func ActiveUserGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//停止ユーザー
			if !user.IsActive {
				return c.JSON(http.StatusUnauthorized, errorJSON("account is inactive"))
			}

			//token_version が一致しなければ強制ログアウト扱い（401）
			if user.TokenVersion != tv {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserRoleKey, string(roleOrCustomer(user.Role)))
			return next(c)
		}
	}
}

func roleOrCustomer(r model.Role) model.Role {
	if r == "" {
		return model.RoleCustomer
	}
	return r
}
