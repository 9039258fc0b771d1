package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"

	"go.uber.org/zap"
)

// CartUsecase は /cart の業務ロジック。価格は常に商品の現在値
type CartUsecase struct {
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	log          *zap.Logger
}

func NewCartUsecase(cartItemRepo repo.CartItemRepository, productRepo repo.ProductRepository, log *zap.Logger) *CartUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartUsecase{cartItemRepo: cartItemRepo, productRepo: productRepo, log: log}
}

type CartItemResponse struct {
	ID            int64       `json:"id"`
	ProductID     int64       `json:"product_id"`
	Name          string      `json:"name"`
	Price         model.Money `json:"price"`
	Unit          string      `json:"unit"`
	ImageURL      string      `json:"image_url"`
	Quantity      int64       `json:"quantity"`
	StockQuantity int64       `json:"stock_quantity"`
	LineTotal     model.Money `json:"line_total"`
}

type CartSummary struct {
	TotalItems  int64       `json:"total_items"`
	TotalAmount model.Money `json:"total_amount"`
	ItemCount   int         `json:"item_count"`
}

type CartResponse struct {
	Items   []CartItemResponse `json:"items"`
	Summary CartSummary        `json:"summary"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) Summary(ctx context.Context, userID int64) (CartSummary, error) {
	cart, err := u.GetCart(ctx, userID)
	if err != nil {
		return CartSummary{}, err
	}
	return cart.Summary, nil
}

// カートに追加（同一商品は数量加算）
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewValidationError(FieldError{Field: "product_id", Message: "invalid product_id"})
	}
	if err := validateCartQuantity(in.Quantity); err != nil {
		return CartResponse{}, err
	}

	p, err := u.activeProduct(ctx, in.ProductID)
	if err != nil {
		return CartResponse{}, err
	}

	existing, err := u.cartItemRepo.FindByUserAndProduct(ctx, userID, in.ProductID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if in.Quantity > p.StockQuantity {
			return CartResponse{}, cartStockError(p.StockQuantity, in.Quantity)
		}
		err = u.cartItemRepo.Create(ctx, &model.CartItem{UserID: userID, ProductID: in.ProductID, Quantity: in.Quantity})
		if errors.Is(err, repo.ErrDuplicateKey) {
			// 同時に追加された。もう一度加算側で処理する
			return u.AddToCart(ctx, userID, in)
		}
	case err != nil:
		// 下で処理
	default:
		//足す前に比べる（existing + in で桁あふれさせない）
		if in.Quantity > model.MaxLineQuantity-existing.Quantity {
			return CartResponse{}, NewValidationError(FieldError{Field: "quantity", Message: "quantity must not exceed 10000"})
		}
		if in.Quantity > p.StockQuantity-existing.Quantity {
			return CartResponse{}, cartStockError(p.StockQuantity, existing.Quantity+in.Quantity)
		}
		newQty := existing.Quantity + in.Quantity
		err = u.cartItemRepo.UpdateQuantity(ctx, existing.ID, newQty)
	}
	if err != nil {
		return CartResponse{}, u.internal("add to cart", err)
	}

	return u.buildCartResponse(ctx, userID)
}

// 数量変更（所有チェック＋在庫チェック）
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := validateCartQuantity(in.Quantity); err != nil {
		return CartResponse{}, err
	}

	item, err := u.ownedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	p, err := u.activeProduct(ctx, item.ProductID)
	if err != nil {
		return CartResponse{}, err
	}
	if in.Quantity > p.StockQuantity {
		return CartResponse{}, cartStockError(p.StockQuantity, in.Quantity)
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return CartResponse{}, u.internal("update cart item", err)
	}
	return u.buildCartResponse(ctx, userID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if _, err := u.ownedItem(ctx, userID, cartItemID); err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return CartResponse{}, u.internal("delete cart item", err)
	}
	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) Clear(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.cartItemRepo.DeleteByUserID(ctx, userID); err != nil {
		return u.internal("clear cart", err)
	}
	return nil
}

// 他人の明細は404（存在を知らせない）
func (u *CartUsecase) ownedItem(ctx context.Context, userID, cartItemID int64) (model.CartItem, error) {
	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && item.UserID != userID) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return model.CartItem{}, u.internal("find cart item", err)
	}
	return item, nil
}

func (u *CartUsecase) activeProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return model.Product{}, u.internal("find product", err)
	}
	return p, nil
}

// 無効になった商品の行は表示しない
func (u *CartUsecase) buildCartResponse(ctx context.Context, userID int64) (CartResponse, error) {
	lines, err := u.cartItemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, u.internal("list cart", err)
	}

	resp := CartResponse{Items: make([]CartItemResponse, 0, len(lines))}
	for _, l := range lines {
		if !l.IsActive {
			continue
		}
		lineTotal := l.Price.Mul(l.Quantity)
		resp.Items = append(resp.Items, CartItemResponse{
			ID:            l.ID,
			ProductID:     l.ProductID,
			Name:          l.ProductName,
			Price:         l.Price,
			Unit:          l.Unit,
			ImageURL:      l.ImageURL,
			Quantity:      l.Quantity,
			StockQuantity: l.StockQuantity,
			LineTotal:     lineTotal,
		})
		resp.Summary.TotalItems += l.Quantity
		resp.Summary.TotalAmount += lineTotal
	}
	resp.Summary.ItemCount = len(resp.Items)
	return resp, nil
}

func (u *CartUsecase) internal(op string, err error) error {
	u.log.Error(op, zap.Error(err))
	return errInternal
}

func cartStockError(available, requested int64) error {
	return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("insufficient stock. Available: %d, Requested: %d", available, requested))
}

func validateCartQuantity(qty int64) error {
	switch {
	case qty < 1:
		return NewValidationError(FieldError{Field: "quantity", Message: "quantity must be at least 1"})
	case qty > model.MaxLineQuantity:
		return NewValidationError(FieldError{Field: "quantity", Message: "quantity must not exceed 10000"})
	}
	return nil
}
