package checkout

import (
	"strings"

	"github.com/angelmondragon/storefront/pkg/validation"
)

// Buyer is the contact block appended to an order message.
type Buyer struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,len=10,numeric"`
	Address string `json:"address" validate:"required,max=500"`
}

// Normalize trims fields and drops spaces and dashes from the phone number.
func (b Buyer) Normalize() Buyer {
	phone := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, b.Phone)
	return Buyer{
		Name:    strings.TrimSpace(b.Name),
		Phone:   strings.TrimSpace(phone),
		Address: strings.TrimSpace(b.Address),
	}
}

// Validate returns a VALIDATION_ERROR with per-field details.
func (b Buyer) Validate() error {
	return validation.Struct(b)
}
