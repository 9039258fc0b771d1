package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"

	"go.uber.org/zap"
)

type CategoryUsecase struct {
	categoryRepo repo.CategoryRepository
	productRepo  repo.ProductRepository
	log          *zap.Logger
}

func NewCategoryUsecase(categoryRepo repo.CategoryRepository, productRepo repo.ProductRepository, log *zap.Logger) *CategoryUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CategoryUsecase{categoryRepo: categoryRepo, productRepo: productRepo, log: log}
}

type CategoryInput struct {
	Name        string
	Description string
	ImageURL    string
	IsActive    bool
}

func (u *CategoryUsecase) List(ctx context.Context) ([]repo.CategoryWithCount, error) {
	items, err := u.categoryRepo.ListActiveWithCount(ctx)
	if err != nil {
		u.log.Error("list categories", zap.Error(err))
		return nil, errInternal
	}
	return items, nil
}

func (u *CategoryUsecase) Get(ctx context.Context, id int64) (model.Category, error) {
	if id <= 0 {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	c, err := u.categoryRepo.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !c.IsActive) {
		return model.Category{}, NewHTTPError(http.StatusNotFound, "category not found")
	}
	if err != nil {
		u.log.Error("find category", zap.Int64("category_id", id), zap.Error(err))
		return model.Category{}, errInternal
	}
	return c, nil
}

// カテゴリ内の有効な商品（一覧と同じ絞り込み / 並び替え）
func (u *CategoryUsecase) ListProducts(ctx context.Context, id int64, page, limit int, sort string) (ProductListOutput, error) {
	if _, err := u.Get(ctx, id); err != nil {
		return ProductListOutput{}, err
	}
	products := &ProductUsecase{productRepo: u.productRepo, categoryRepo: u.categoryRepo, log: u.log}
	return products.ListPublicProducts(ctx, ListProductsInput{
		Page:       page,
		Limit:      limit,
		CategoryID: &id,
		Sort:       sort,
	})
}

func (u *CategoryUsecase) Create(ctx context.Context, in CategoryInput) (model.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Category{}, NewValidationError(FieldError{Field: "name", Message: "name required"})
	}
	if err := u.ensureUniqueName(ctx, name, 0); err != nil {
		return model.Category{}, err
	}

	c, err := u.categoryRepo.Create(ctx, model.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsActive:    true,
	})
	if errors.Is(err, repo.ErrDuplicateKey) {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, "category name already exists")
	}
	if err != nil {
		u.log.Error("create category", zap.Error(err))
		return model.Category{}, errInternal
	}
	return c, nil
}

func (u *CategoryUsecase) Update(ctx context.Context, id int64, in CategoryInput) (model.Category, error) {
	if id <= 0 {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Category{}, NewValidationError(FieldError{Field: "name", Message: "name required"})
	}
	if err := u.ensureUniqueName(ctx, name, id); err != nil {
		return model.Category{}, err
	}

	err := u.categoryRepo.Update(ctx, model.Category{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsActive:    in.IsActive,
	})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return model.Category{}, NewHTTPError(http.StatusNotFound, "category not found")
	case errors.Is(err, repo.ErrDuplicateKey):
		return model.Category{}, NewHTTPError(http.StatusBadRequest, "category name already exists")
	case err != nil:
		u.log.Error("update category", zap.Int64("category_id", id), zap.Error(err))
		return model.Category{}, errInternal
	}

	c, err := u.categoryRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Error("reload category", zap.Int64("category_id", id), zap.Error(err))
		return model.Category{}, errInternal
	}
	return c, nil
}

// 有効な商品が残っていれば消せない
func (u *CategoryUsecase) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	n, err := u.categoryRepo.CountActiveProducts(ctx, id)
	if err != nil {
		u.log.Error("count category products", zap.Int64("category_id", id), zap.Error(err))
		return errInternal
	}
	if n > 0 {
		return NewHTTPError(http.StatusBadRequest, "cannot delete category with active products")
	}

	err = u.categoryRepo.Deactivate(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "category not found")
	}
	if err != nil {
		u.log.Error("delete category", zap.Int64("category_id", id), zap.Error(err))
		return errInternal
	}
	return nil
}

func (u *CategoryUsecase) ensureUniqueName(ctx context.Context, name string, excludeID int64) error {
	exists, err := u.categoryRepo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		u.log.Error("check category name", zap.Error(err))
		return errInternal
	}
	if exists {
		return NewHTTPError(http.StatusBadRequest, "category name already exists")
	}
	return nil
}
