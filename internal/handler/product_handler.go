package handler

import (
	"net/http"

	"ccmart/internal/usecase"

	"github.com/labstack/echo/v4"
)

const defaultProductLimit = 12

// /products の公開API
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// 公開商品のルートを登録
func (h *ProductHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/products", h.list)
	api.GET("/products/featured", h.featured)
	api.GET("/products/:id", h.detail)
}

func (h *ProductHandler) list(c echo.Context) error {
	in, err := productListInput(c)
	if err != nil {
		return writeError(c, err)
	}

	category, err := queryInt64Ptr(c, "category")
	if err != nil {
		return writeError(c, err)
	}
	in.CategoryID = category

	out, err := h.uc.ListPublicProducts(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) featured(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListFeatured(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	p, err := h.uc.GetProductDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// 一覧系で共通のクエリ（category以外）
func productListInput(c echo.Context) (usecase.ListProductsInput, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return usecase.ListProductsInput{}, err
	}
	limit, err := queryInt(c, "limit", defaultProductLimit)
	if err != nil {
		return usecase.ListProductsInput{}, err
	}
	featured, err := queryBoolPtr(c, "featured")
	if err != nil {
		return usecase.ListProductsInput{}, err
	}
	minPrice, err := queryMoneyPtr(c, "min_price")
	if err != nil {
		return usecase.ListProductsInput{}, err
	}
	maxPrice, err := queryMoneyPtr(c, "max_price")
	if err != nil {
		return usecase.ListProductsInput{}, err
	}

	return usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Search:   c.QueryParam("search"),
		Featured: featured,
		Stock:    c.QueryParam("stock"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     c.QueryParam("sort"),
	}, nil
}
