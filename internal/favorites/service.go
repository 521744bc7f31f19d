package favorites

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/google/uuid"
)

// Service manages the signed-in user's wishlist rows.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error)
	Add(ctx context.Context, userID uuid.UUID, productID int64) (ItemDTO, error)
	Remove(ctx context.Context, userID uuid.UUID, productID int64) error
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds a wishlist service. now may be nil.
func NewService(repo *Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wishlist repo is required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wishlist")
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, productID int64) (ItemDTO, error) {
	if userID == uuid.Nil {
		return ItemDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	if productID <= 0 {
		return ItemDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}

	exists, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product")
	}
	if !exists {
		return ItemDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	row := models.WishlistItem{
		UserID:    userID,
		ProductID: productID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, &row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product already in wishlist")
		}
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add wishlist item")
	}
	return fromModel(row), nil
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, productID int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	if _, err := s.repo.Delete(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove wishlist item")
	}
	return nil
}
