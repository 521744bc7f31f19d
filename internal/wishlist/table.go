package wishlist

import (
	"context"
	"time"
)

// Row is one favorite as stored remotely.
type Row struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Table is the remote wishlist store. List returns rows newest first.
type Table interface {
	List(ctx context.Context, userID string) ([]Row, error)
	Insert(ctx context.Context, userID string, productID int64) (Row, error)
	Delete(ctx context.Context, userID string, productID int64) error
}
