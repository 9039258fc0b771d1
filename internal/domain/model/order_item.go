package model

import "time"

// 1明細（カート1行）あたりの数量上限
const MaxLineQuantity int64 = 10000

// 価格と商品名は注文時点のスナップショット
type OrderItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"not null;index" json:"order_id"`
	ProductID   int64     `gorm:"not null;index" json:"product_id"`
	ProductName string    `gorm:"type:varchar(200);not null" json:"product_name"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	Price       Money     `gorm:"type:bigint;not null" json:"price"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) Subtotal() Money {
	return it.Price.Mul(it.Quantity)
}
