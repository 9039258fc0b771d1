package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

// 表示用（商品情報つき）
type CartLine struct {
	model.CartItem
	ProductName   string
	Price         model.Money
	Unit          string
	ImageURL      string
	StockQuantity int64
	IsActive      bool
}

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]CartLine, error)
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	FindByUserAndProduct(ctx context.Context, userID int64, productID int64) (model.CartItem, error)
	Create(ctx context.Context, item *model.CartItem) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByUserID(ctx context.Context, userID int64) error
}
