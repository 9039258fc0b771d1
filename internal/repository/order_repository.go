package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

type OrderListFilter struct {
	Page          int
	Limit         int
	UserID        *int64 // nil なら全件（管理者）
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
}

// status / payment_status の部分更新。nilは変更しない
type OrderStatusUpdate struct {
	Status        *model.OrderStatus
	PaymentStatus *model.PaymentStatus
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 行ロック（SELECT ... FOR UPDATE）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)

	// order_number / idempotency_key の重複は ErrDuplicateKey
	Create(ctx context.Context, order *model.Order) error

	// 現在のstatusが from のときだけ更新する。更新できなければ false
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, upd OrderStatusUpdate) (bool, error)

	// 同じキーなら同じ結果
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}
