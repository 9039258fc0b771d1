package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"

	"go.uber.org/zap"
)

const defaultFeaturedLimit = 8

type ProductUsecase struct {
	productRepo  repo.ProductRepository
	categoryRepo repo.CategoryRepository
	tx           repo.TransactionManager
	log          *zap.Logger
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	categoryRepo repo.CategoryRepository,
	tx repo.TransactionManager,
	log *zap.Logger,
) *ProductUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductUsecase{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		tx:           tx,
		log:          log,
	}
}

// 在庫区分つきの商品
type ProductOutput struct {
	model.Product
	StockStatus model.StockLevel `json:"stock_status"`
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{Product: p, StockStatus: p.StockLevel()}
}

// GET /products の入力DTO
type ListProductsInput struct {
	Page       int
	Limit      int
	CategoryID *int64
	Search     string
	Featured   *bool
	Stock      string
	MinPrice   *model.Money
	MaxPrice   *model.Money
	Sort       string
}

type ProductListOutput struct {
	Items []ProductOutput `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Pages int             `json:"pages"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Search) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "search too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "created_at", "name", "name_desc", "price", "price_desc", "popularity":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}
	level := model.StockLevel(in.Stock)
	switch level {
	case "", model.StockLevelIn, model.StockLevelLow, model.StockLevelOut:
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid stock filter")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:       in.Page,
		Limit:      in.Limit,
		CategoryID: in.CategoryID,
		Search:     strings.TrimSpace(in.Search),
		Featured:   in.Featured,
		StockLevel: level,
		MinPrice:   in.MinPrice,
		MaxPrice:   in.MaxPrice,
		Sort:       in.Sort,
	})
	if err != nil {
		u.log.Error("list products", zap.Error(err))
		return ProductListOutput{}, errInternal
	}

	out := ProductListOutput{
		Items: make([]ProductOutput, 0, len(items)),
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
		Pages: pageCount(total, in.Limit),
	}
	for _, p := range items {
		out.Items = append(out.Items, toProductOutput(p))
	}
	return out, nil
}

func (u *ProductUsecase) ListFeatured(ctx context.Context, limit int) ([]ProductOutput, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	if limit > 50 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	items, err := u.productRepo.ListFeatured(ctx, limit)
	if err != nil {
		u.log.Error("list featured products", zap.Error(err))
		return nil, errInternal
	}
	out := make([]ProductOutput, 0, len(items))
	for _, p := range items {
		out = append(out, toProductOutput(p))
	}
	return out, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (ProductOutput, error) {
	if productID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		u.log.Error("find product", zap.Int64("product_id", productID), zap.Error(err))
		return ProductOutput{}, errInternal
	}

	if !p.IsActive {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	return toProductOutput(p), nil
}

type AdminProductInput struct {
	CategoryID    int64
	Name          string
	Description   string
	Price         model.Money
	StockQuantity int64
	Unit          string
	ImageURL      string
	IsActive      bool
	IsFeatured    bool
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminProductInput) (ProductOutput, error) {
	if adminUserID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateProductInput(in); err != nil {
		return ProductOutput{}, err
	}
	if err := u.ensureActiveCategory(ctx, in.CategoryID); err != nil {
		return ProductOutput{}, err
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		CategoryID:    in.CategoryID,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		Unit:          unitOrDefault(in.Unit),
		ImageURL:      strings.TrimSpace(in.ImageURL),
		IsActive:      true,
		IsFeatured:    in.IsFeatured,
	})
	if err != nil {
		u.log.Error("create product", zap.Error(err))
		return ProductOutput{}, errInternal
	}
	return toProductOutput(p), nil
}

// 在庫はここでは変えない（AdminUpdateStock を使う）
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in AdminProductInput) (ProductOutput, error) {
	if adminUserID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := validateProductInput(in); err != nil {
		return ProductOutput{}, err
	}
	if err := u.ensureActiveCategory(ctx, in.CategoryID); err != nil {
		return ProductOutput{}, err
	}

	err := u.productRepo.Update(ctx, model.Product{
		ID:          productID,
		CategoryID:  in.CategoryID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Unit:        unitOrDefault(in.Unit),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsActive:    in.IsActive,
		IsFeatured:  in.IsFeatured,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		u.log.Error("update product", zap.Int64("product_id", productID), zap.Error(err))
		return ProductOutput{}, errInternal
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err != nil {
		u.log.Error("reload product", zap.Int64("product_id", productID), zap.Error(err))
		return ProductOutput{}, errInternal
	}
	return toProductOutput(p), nil
}

// 論理削除。注文明細から参照されるので行は消さない
func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	err := u.productRepo.Deactivate(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		u.log.Error("delete product", zap.Int64("product_id", productID), zap.Error(err))
		return errInternal
	}
	return nil
}

type StockUpdateOutput struct {
	ProductID int64 `json:"product_id"`
	Before    int64 `json:"stock_before"`
	After     int64 `json:"stock_after"`
	Delta     int64 `json:"delta"`
}

// 在庫の直接修正。調整履歴と監査ログを同じTxで残す
func (u *ProductUsecase) AdminUpdateStock(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) (StockUpdateOutput, error) {
	if adminUserID <= 0 {
		return StockUpdateOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return StockUpdateOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return StockUpdateOutput{}, NewValidationError(FieldError{Field: "stock_quantity", Message: "must be >= 0"})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StockUpdateOutput{}, NewValidationError(FieldError{Field: "reason", Message: "reason required"})
	}

	var out StockUpdateOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（ロック）
		before, err := r.Inventory().GetStockForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			return fmt.Errorf("set stock: %w", err)
		}

		now := time.Now()
		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Before:      before,
			After:       newStock,
			Delta:       newStock - before,
			Reason:      reason,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("create adjustment: %w", err)
		}

		//監査ログ
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock_quantity":%d}`, before),
			AfterJSON:    fmt.Sprintf(`{"stock_quantity":%d}`, newStock),
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("create audit log: %w", err)
		}

		out = StockUpdateOutput{ProductID: productID, Before: before, After: newStock, Delta: newStock - before}
		return nil
	})
	if err != nil {
		if he, ok := AsHTTPError(err); ok {
			return StockUpdateOutput{}, he
		}
		u.log.Error("update stock", zap.Int64("product_id", productID), zap.Error(err))
		return StockUpdateOutput{}, errInternal
	}

	u.log.Info("stock updated",
		zap.Int64("product_id", productID),
		zap.Int64("admin_user_id", adminUserID),
		zap.Int64("before", out.Before),
		zap.Int64("after", out.After),
	)
	return out, nil
}

func (u *ProductUsecase) ensureActiveCategory(ctx context.Context, categoryID int64) error {
	c, err := u.categoryRepo.FindByID(ctx, categoryID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !c.IsActive) {
		return NewValidationError(FieldError{Field: "category_id", Message: "category not found"})
	}
	if err != nil {
		u.log.Error("find category", zap.Int64("category_id", categoryID), zap.Error(err))
		return errInternal
	}
	return nil
}

func validateProductInput(in AdminProductInput) error {
	var details []FieldError
	if in.CategoryID <= 0 {
		details = append(details, FieldError{Field: "category_id", Message: "category_id required"})
	}
	if strings.TrimSpace(in.Name) == "" {
		details = append(details, FieldError{Field: "name", Message: "name required"})
	}
	if in.Price < 0 {
		details = append(details, FieldError{Field: "price", Message: "price must be >= 0"})
	}
	if in.StockQuantity < 0 {
		details = append(details, FieldError{Field: "stock_quantity", Message: "stock must be >= 0"})
	}
	if len(details) > 0 {
		return NewValidationError(details...)
	}
	return nil
}

func unitOrDefault(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return "piece"
	}
	return unit
}
