package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ccmart/internal/domain/model"
	"ccmart/internal/repository"

	"go.uber.org/zap"
)

type AdminUserUsecase struct {
	users     repository.UserRepository
	auditRepo repository.AuditLogRepository
	log       *zap.Logger
}

func NewAdminUserUsecase(users repository.UserRepository, auditRepo repository.AuditLogRepository, log *zap.Logger) *AdminUserUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminUserUsecase{users: users, auditRepo: auditRepo, log: log}
}

type UserListOutput struct {
	Items []UserDTO `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Pages int       `json:"pages"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

func (u *AdminUserUsecase) List(ctx context.Context, page, limit int) (UserListOutput, error) {
	if page < 1 {
		return UserListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return UserListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	users, total, err := u.users.List(ctx, repository.UserListQuery{Page: page, Limit: limit})
	if err != nil {
		u.log.Error("list users", zap.Error(err))
		return UserListOutput{}, errInternal
	}

	out := UserListOutput{
		Items: make([]UserDTO, 0, len(users)),
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pageCount(total, limit),
	}
	for i := range users {
		out.Items = append(out.Items, toUserDTO(&users[i]))
	}
	return out, nil
}

// 停止 / 再開。自分自身は停止できない
func (u *AdminUserUsecase) SetActive(ctx context.Context, actorAdminUserID, targetUserID int64, active bool) (UserDTO, error) {
	if actorAdminUserID <= 0 {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if targetUserID <= 0 {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !active && targetUserID == actorAdminUserID {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "cannot deactivate your own account")
	}

	user, err := u.users.FindByID(ctx, targetUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserDTO{}, NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		u.log.Error("find user", zap.Int64("user_id", targetUserID), zap.Error(err))
		return UserDTO{}, errInternal
	}

	before := user.IsActive
	user.IsActive = active
	if err := u.users.Update(ctx, user); err != nil {
		u.log.Error("update user", zap.Int64("user_id", targetUserID), zap.Error(err))
		return UserDTO{}, errInternal
	}

	u.audit(ctx, model.AuditLog{
		ActorUserID:  actorAdminUserID,
		Action:       model.AuditActionSetUserActive,
		ResourceType: model.AuditResourceUser,
		ResourceID:   targetUserID,
		BeforeJSON:   fmt.Sprintf(`{"is_active":%t}`, before),
		AfterJSON:    fmt.Sprintf(`{"is_active":%t}`, active),
		CreatedAt:    time.Now(),
	})
	return toUserDTO(user), nil
}

// token_version を上げて発行済みJWTを全部無効にする
func (u *AdminUserUsecase) ForceLogout(ctx context.Context, actorAdminUserID, targetUserID int64) (ForceLogoutResponse, error) {
	if actorAdminUserID <= 0 {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if targetUserID <= 0 {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err := u.users.IncrementTokenVersion(ctx, targetUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return ForceLogoutResponse{}, NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		u.log.Error("increment token version", zap.Int64("user_id", targetUserID), zap.Error(err))
		return ForceLogoutResponse{}, errInternal
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil {
		u.log.Error("reload user", zap.Int64("user_id", targetUserID), zap.Error(err))
		return ForceLogoutResponse{}, errInternal
	}

	u.audit(ctx, model.AuditLog{
		ActorUserID:  actorAdminUserID,
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   targetUserID,
		BeforeJSON:   fmt.Sprintf(`{"token_version":%d}`, user.TokenVersion-1),
		AfterJSON:    fmt.Sprintf(`{"token_version":%d}`, user.TokenVersion),
		CreatedAt:    time.Now(),
	})
	return ForceLogoutResponse{UserID: user.ID, NewTokenVersion: user.TokenVersion}, nil
}

// 監査ログの失敗で操作自体は失敗させない
func (u *AdminUserUsecase) audit(ctx context.Context, log model.AuditLog) {
	if err := u.auditRepo.Create(ctx, log); err != nil {
		u.log.Error("create audit log",
			zap.String("action", string(log.Action)),
			zap.Int64("resource_id", log.ResourceID),
			zap.Error(err),
		)
	}
}
