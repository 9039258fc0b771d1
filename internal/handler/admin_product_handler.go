package handler

import (
	"net/http"

	"ccmart/internal/domain/model"
	"ccmart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ProductRequest struct {
	CategoryID    int64       `json:"category_id" validate:"required,min=1"`
	Name          string      `json:"name" validate:"trimmed_len=2:200"`
	Description   string      `json:"description" validate:"max=1000"`
	Price         model.Money `json:"price" validate:"gte=0"`
	StockQuantity int64       `json:"stock_quantity" validate:"gte=0"`
	Unit          string      `json:"unit" validate:"max=50"`
	ImageURL      string      `json:"image_url" validate:"max=500"`
	IsActive      *bool       `json:"is_active"`
	IsFeatured    bool        `json:"is_featured"`
}

// 在庫更新の入力
type StockUpdateRequest struct {
	StockQuantity *int64 `json:"stock_quantity" validate:"required,gte=0"`
	Reason        string `json:"reason" validate:"trimmed_len=1:255"`
}

// 管理者用の商品API（/products の書き込み系）
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

func (h *AdminProductHandler) RegisterRoutes(api *echo.Group, guards Guards) {
	api.POST("/products", h.createProduct, guards.Admin...)
	api.PUT("/products/:id", h.updateProduct, guards.Admin...)
	api.DELETE("/products/:id", h.deleteProduct, guards.Admin...)
	api.PUT("/products/:id/stock", h.updateStock, guards.Admin...)
}

func (req ProductRequest) toInput() usecase.AdminProductInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return usecase.AdminProductInput{
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Unit:          req.Unit,
		ImageURL:      req.ImageURL,
		IsActive:      active,
		IsFeatured:    req.IsFeatured,
	}
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), adminID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	p, err := h.uc.AdminUpdateProduct(c.Request().Context(), adminID, id, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.AdminDeleteProduct(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "product deleted successfully"})
}

func (h *AdminProductHandler) updateStock(c echo.Context) error {
	productID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	var req StockUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.AdminUpdateStock(c.Request().Context(), adminID, productID, *req.StockQuantity, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
