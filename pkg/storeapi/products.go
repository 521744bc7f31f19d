package storeapi

import (
	"context"
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

type productPayload struct {
	ID int64 `json:"id,omitempty"`
	types.ProductInput
}

// ListProducts returns the catalog, newest first.
func (c *Client) ListProducts(ctx context.Context) ([]types.Product, error) {
	var products []types.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products"}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct fetches one product; unknown ids come back as a not-found error.
func (c *Client) GetProduct(ctx context.Context, id int64) (types.Product, error) {
	if id <= 0 {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	var product types.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: productPath(id)}, &product); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

// CreateProduct adds a product. Requires an admin session.
func (c *Client) CreateProduct(ctx context.Context, input types.ProductInput) (types.Product, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return types.Product{}, err
	}
	var product types.Product
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/products",
		body:   productPayload{ProductInput: input},
		token:  token,
	}, &product); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

// UpdateProduct replaces the writable fields of product id. Requires an admin session.
func (c *Client) UpdateProduct(ctx context.Context, id int64, input types.ProductInput) (types.Product, error) {
	if id <= 0 {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return types.Product{}, err
	}
	var product types.Product
	if err := c.do(ctx, request{
		method: http.MethodPut,
		path:   productPath(id),
		body:   productPayload{ID: id, ProductInput: input},
		token:  token,
	}, &product); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}
