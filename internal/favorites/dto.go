package favorites

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/google/uuid"
)

// ItemDTO is one wishlist row as returned to clients.
type ItemDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AddRequest is the insert payload.
type AddRequest struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
}

func fromModel(row models.WishlistItem) ItemDTO {
	return ItemDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		ProductID: row.ProductID,
		CreatedAt: row.CreatedAt,
	}
}
