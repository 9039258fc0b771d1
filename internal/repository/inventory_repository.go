package repository

import (
	"context"

	"ccmart/internal/domain/model"
)

// stock_quantity を触るのはここだけ
type InventoryRepository interface {
	// 在庫の現在値を取得（ロックあり）
	GetStockForUpdate(ctx context.Context, productID int64) (int64, error)

	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算。足りなければ false
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）。相対加算
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
