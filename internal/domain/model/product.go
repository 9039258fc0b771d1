package model

import "time"

// 在庫しきい値（low_stock は 1..LowStockThreshold）
const LowStockThreshold = 10

type Product struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID    int64     `gorm:"not null;index" json:"category_id"`
	Name          string    `gorm:"type:varchar(200);not null;index" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	Price         Money     `gorm:"type:bigint;not null" json:"price"`
	StockQuantity int64     `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	Unit          string    `gorm:"type:varchar(20);not null;default:'piece'" json:"unit"`
	ImageURL      string    `gorm:"type:varchar(500)" json:"image_url"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	IsFeatured    bool      `gorm:"not null;default:false;index" json:"is_featured"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// in_stock / low_stock / out_of_stock
type StockLevel string

const (
	StockLevelIn  StockLevel = "in_stock"
	StockLevelLow StockLevel = "low_stock"
	StockLevelOut StockLevel = "out_of_stock"
)

func (p Product) StockLevel() StockLevel {
	switch {
	case p.StockQuantity <= 0:
		return StockLevelOut
	case p.StockQuantity <= LowStockThreshold:
		return StockLevelLow
	default:
		return StockLevelIn
	}
}
