package checkout

import (
	"context"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

// Order is a prepared checkout hand-off.
type Order struct {
	Message string
	Link    string
	Total   decimal.Decimal
	Items   int
}

// Service validates the buyer and turns a cart into a chat hand-off.
type Service struct {
	cfg       config.CheckoutConfig
	formatter Formatter
	logg      *logger.Logger
}

func NewService(cfg config.CheckoutConfig, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		cfg:       cfg,
		formatter: Formatter{Currency: cfg.Currency},
		logg:      logg,
	}
}

// Prepare formats the message and deep link. The cart itself is left untouched.
func (s *Service) Prepare(ctx context.Context, items []cart.Item, buyer Buyer) (Order, error) {
	if len(items) == 0 {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	buyer = buyer.Normalize()
	if err := buyer.Validate(); err != nil {
		return Order{}, err
	}

	total := Total(items)
	message := s.formatter.Format(items, total, buyer)
	link, err := DeepLink(s.cfg.ChatBaseURL, s.cfg.CountryCode, s.cfg.BusinessNumber, message)
	if err != nil {
		return Order{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checkout is not configured")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"items": len(items),
		"total": total.String(),
	}), "checkout.prepared")

	return Order{Message: message, Link: link, Total: total, Items: len(items)}, nil
}

// QRCode renders the order link with the configured size.
func (s *Service) QRCode(order Order) ([]byte, error) {
	return QRCode(order.Link, s.cfg.QRSize)
}
