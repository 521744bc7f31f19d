package cart

import (
	"strconv"

	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/shopspring/decimal"
)

// DefaultStockCeiling caps quantities when a product's stock is unknown or reported as zero.
const DefaultStockCeiling = 99

// Item is one line of the shopper's intended purchase.
type Item struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	StockLimit int             `json:"stockLimit"`
	ImageRef   string          `json:"imageRef,omitempty"`
}

// ItemFromProduct converts a catalog product into a cart line with quantity 1.
func ItemFromProduct(p types.Product) Item {
	return Item{
		ID:         strconv.FormatInt(p.ID, 10),
		Name:       p.Name,
		UnitPrice:  p.Price,
		Quantity:   1,
		StockLimit: p.Stock,
		ImageRef:   p.Image,
	}
}

// LineTotal is unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Ceiling is the highest quantity this line may hold.
func (i Item) Ceiling() int {
	return stockCeiling(i.StockLimit)
}

func stockCeiling(stock int) int {
	if stock <= 0 {
		return DefaultStockCeiling
	}
	return stock
}

func clampQuantity(qty, ceiling int) int {
	if qty < 1 {
		return 1
	}
	if qty > ceiling {
		return ceiling
	}
	return qty
}
