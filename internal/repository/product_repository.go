package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	CategoryID *int64
	Search     string
	Featured   *bool
	StockLevel model.StockLevel
	MinPrice   *model.Money
	MaxPrice   *model.Money
	Sort       string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	ListFeatured(ctx context.Context, limit int) ([]model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// is_active=true に絞って一括取得（欠けていても エラーにしない）
	FindActiveByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	Deactivate(ctx context.Context, id int64) error
}
