package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

type UserListQuery struct {
	Page  int
	Limit int
}

// 保存・取得を約束
type UserRepository interface {
	// 新規ユーザー作成（email重複は ErrDuplicateKey）
	Create(ctx context.Context, user *model.User) error
	// 見つからなければ ErrNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	// 見つからなければ ErrNotFound
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// プロフィール / is_active / last_login_at の更新
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, q UserListQuery) ([]model.User, int64, error)
	// トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error
}
