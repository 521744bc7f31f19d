package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog listing. Stock is the units currently on hand.
type Product struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	Description string          `gorm:"column:description;not null;default:''"`
	Image       string          `gorm:"column:image;not null;default:''"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime;index:products_created_at_idx"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
