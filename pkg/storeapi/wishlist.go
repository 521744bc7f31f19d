package storeapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/angelmondragon/storefront/internal/wishlist"
)

var _ wishlist.Table = WishlistTable{}

// WishlistTable exposes the remote wishlist rows through the client's session.
type WishlistTable struct {
	client *Client
}

// Wishlist returns the wishlist table view of c.
func (c *Client) Wishlist() WishlistTable {
	return WishlistTable{client: c}
}

func (t WishlistTable) List(ctx context.Context, userID string) ([]wishlist.Row, error) {
	token, err := t.client.tokenFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	var rows []wishlist.Row
	if err := t.client.do(ctx, request{method: http.MethodGet, path: "/rest/v1/wishlist", token: token}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (t WishlistTable) Insert(ctx context.Context, userID string, productID int64) (wishlist.Row, error) {
	token, err := t.client.tokenFor(ctx, userID)
	if err != nil {
		return wishlist.Row{}, err
	}
	var row wishlist.Row
	if err := t.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/wishlist",
		body:   map[string]int64{"product_id": productID},
		token:  token,
	}, &row); err != nil {
		return wishlist.Row{}, err
	}
	return row, nil
}

func (t WishlistTable) Delete(ctx context.Context, userID string, productID int64) error {
	token, err := t.client.tokenFor(ctx, userID)
	if err != nil {
		return err
	}
	return t.client.do(ctx, request{
		method: http.MethodDelete,
		path:   "/rest/v1/wishlist/" + strconv.FormatInt(productID, 10),
		token:  token,
	}, nil)
}
