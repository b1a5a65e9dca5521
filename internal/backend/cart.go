package backend

import (
	"context"
	"net/http"
	"net/url"

	"bakery-storefront/pkg/models"
)

// CartResult carries the server cart when the backend echoed it back.
type CartResult struct {
	Lines    []models.CartLine
	HasLines bool
}

func (c *Client) mutateCart(ctx context.Context, path string, body any) (CartResult, error) {
	var resp CartResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return CartResult{}, err
	}
	if resp.Items == nil {
		return CartResult{}, nil
	}
	return CartResult{Lines: linesFromResponse(resp), HasLines: true}, nil
}

func (c *Client) AddCartItem(ctx context.Context, item CartItemRequest) (CartResult, error) {
	return c.mutateCart(ctx, "/cart/add-cart-items", item)
}

func (c *Client) UpdateCartItem(ctx context.Context, item CartItemRequest) (CartResult, error) {
	return c.mutateCart(ctx, "/cart/update-cart-items", item)
}

func (c *Client) RemoveCartItem(ctx context.Context, item CartItemRequest) (CartResult, error) {
	return c.mutateCart(ctx, "/cart/remove-cart-items", item)
}

func (c *Client) ClearCart(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/cart/clear-cart", nil, map[string]string{"userId": userID}, nil)
}

func (c *Client) MergeCartItems(ctx context.Context, items []CartItemRequest) error {
	return c.do(ctx, http.MethodPost, "/cart/merge-cart-items", nil, items, nil)
}

func (c *Client) GetCartItems(ctx context.Context, userID string) ([]models.CartLine, error) {
	var resp CartResponse
	q := url.Values{"userId": {userID}}
	if err := c.do(ctx, http.MethodGet, "/cart/get-cart-items", q, nil, &resp); err != nil {
		return nil, err
	}
	return linesFromResponse(resp), nil
}
