package repository

import (
	"context"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"

	"gorm.io/gorm"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

type cartLineRow struct {
	model.CartItem
	ProductName   string
	Price         model.Money
	Unit          string
	ImageURL      string
	StockQuantity int64
	IsActive      bool
}

// 商品情報をJOINして返す（新しい順）
func (r *CartGormRepository) ListByUserID(ctx context.Context, userID int64) ([]repo.CartLine, error) {
	var rows []cartLineRow
	err := r.db.WithContext(ctx).
		Table("cart").
		Select(`cart.*, products.name AS product_name, products.price AS price, products.unit AS unit,
			products.image_url AS image_url, products.stock_quantity AS stock_quantity, products.is_active AS is_active`).
		Joins("JOIN products ON products.id = cart.product_id").
		Where("cart.user_id = ?", userID).
		Order("cart.created_at desc").Order("cart.id desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]repo.CartLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, repo.CartLine{
			CartItem:      row.CartItem,
			ProductName:   row.ProductName,
			Price:         row.Price,
			Unit:          row.Unit,
			ImageURL:      row.ImageURL,
			StockQuantity: row.StockQuantity,
			IsActive:      row.IsActive,
		})
	}
	return out, nil
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var it model.CartItem
	if err := r.db.WithContext(ctx).First(&it, cartItemID).Error; err != nil {
		return model.CartItem{}, mapError(err)
	}
	return it, nil
}

func (r *CartGormRepository) FindByUserAndProduct(ctx context.Context, userID int64, productID int64) (model.CartItem, error) {
	var it model.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&it).Error
	if err != nil {
		return model.CartItem{}, mapError(err)
	}
	return it, nil
}

// (user_id, product_id) が重複したら ErrDuplicateKey
func (r *CartGormRepository) Create(ctx context.Context, item *model.CartItem) error {
	return mapError(r.db.WithContext(ctx).Create(item).Error)
}

func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// カートを空にする（0件でもエラーにしない）
func (r *CartGormRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.CartItem{}).Error
}
