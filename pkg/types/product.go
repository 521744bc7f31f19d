package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the canonical catalog record shared by the backend, the API client and the cart.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

// ProductInput is the writable subset of a product accepted by create/update.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"min=0"`
	Description string          `json:"description" validate:"max=5000"`
	Image       string          `json:"image" validate:"omitempty,url"`
}

// Normalize trims free-text fields in place.
func (p *ProductInput) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Image = strings.TrimSpace(p.Image)
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}
