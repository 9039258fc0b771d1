package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

// 一覧用（有効な商品数つき）
type CategoryWithCount struct {
	model.Category
	ProductCount int64 `json:"product_count"`
}

type CategoryRepository interface {
	ListActiveWithCount(ctx context.Context) ([]CategoryWithCount, error)
	FindByID(ctx context.Context, id int64) (model.Category, error)
	// 大文字小文字を無視して検索。excludeID>0ならそのIDを除く
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, c model.Category) (model.Category, error)
	Update(ctx context.Context, c model.Category) error
	Deactivate(ctx context.Context, id int64) error
	CountActiveProducts(ctx context.Context, id int64) (int64, error)
}
