package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency = "₹"
	defaultGreeting = "Hello! I would like to place an order."
	defaultClosing  = "Please confirm my order. Thank you!"
)

// Formatter renders order messages. The zero value uses the default currency and wording.
type Formatter struct {
	Currency string
	Greeting string
	Closing  string
}

// FormatMessage renders the order with the default formatter.
func FormatMessage(items []cart.Item, total decimal.Decimal, buyer Buyer) string {
	return Formatter{}.Format(items, total, buyer)
}

// Format builds the message: greeting, numbered lines starting at 1, buyer block, total, closing.
func (f Formatter) Format(items []cart.Item, total decimal.Decimal, buyer Buyer) string {
	currency := firstNonEmpty(f.Currency, DefaultCurrency)

	var b strings.Builder
	b.WriteString(firstNonEmpty(f.Greeting, defaultGreeting))
	b.WriteString("\n\nOrder details:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s x%d - %s%s\n", i+1, item.Name, item.Quantity, currency, formatAmount(item.LineTotal()))
	}
	b.WriteString("\nCustomer details:\n")
	fmt.Fprintf(&b, "Name: %s\n", buyer.Name)
	fmt.Fprintf(&b, "Phone: %s\n", buyer.Phone)
	fmt.Fprintf(&b, "Address: %s\n", buyer.Address)
	fmt.Fprintf(&b, "\nTotal Amount: %s%s\n\n", currency, formatAmount(total))
	b.WriteString(firstNonEmpty(f.Closing, defaultClosing))
	return b.String()
}

// Total sums the line totals of items.
func Total(items []cart.Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func formatAmount(d decimal.Decimal) string {
	return d.Round(2).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
