package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/angelmondragon/storefront/pkg/validation"
)

// Service exposes catalog reads and admin writes.
type Service interface {
	List(ctx context.Context) ([]types.Product, error)
	Get(ctx context.Context, id int64) (types.Product, error)
	Create(ctx context.Context, input types.ProductInput) (types.Product, error)
	Update(ctx context.Context, id int64, input types.ProductInput) (types.Product, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds a catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog repo is required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context) ([]types.Product, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]types.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProduct(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id int64) (types.Product, error) {
	if id <= 0 {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return types.Product{}, mapRepoError(err, "load product")
	}
	return toProduct(*row), nil
}

func (s *service) Create(ctx context.Context, input types.ProductInput) (types.Product, error) {
	if err := validateInput(&input); err != nil {
		return types.Product{}, err
	}
	row := fromInput(input)
	if err := s.repo.Create(ctx, &row); err != nil {
		return types.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return toProduct(row), nil
}

func (s *service) Update(ctx context.Context, id int64, input types.ProductInput) (types.Product, error) {
	if id <= 0 {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	if err := validateInput(&input); err != nil {
		return types.Product{}, err
	}
	row := fromInput(input)
	row.ID = id
	row.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, &row); err != nil {
		return types.Product{}, mapRepoError(err, "update product")
	}
	return s.Get(ctx, id)
}

func validateInput(input *types.ProductInput) error {
	input.Normalize()
	if err := validation.Struct(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"price": "must be at least 0"})
	}
	return nil
}

func mapRepoError(err error, action string) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func fromInput(input types.ProductInput) models.Product {
	return models.Product{
		Name:        input.Name,
		Price:       input.Price.Round(2),
		Stock:       input.Stock,
		Description: input.Description,
		Image:       input.Image,
	}
}

func toProduct(row models.Product) types.Product {
	return types.Product{
		ID:          row.ID,
		Name:        row.Name,
		Price:       row.Price,
		Stock:       row.Stock,
		Description: row.Description,
		Image:       row.Image,
	}
}
