package backend

import (
	"context"
	"net/http"
	"net/url"

	"bakery-storefront/pkg/models"
)

func (c *Client) AddWishlistItem(ctx context.Context, item WishlistItemRequest) error {
	return c.do(ctx, http.MethodPost, "/wishlist/add-wishlist-items", nil, item, nil)
}

func (c *Client) RemoveWishlistItem(ctx context.Context, item WishlistItemRequest) error {
	return c.do(ctx, http.MethodPost, "/wishlist/remove-wishlist-items", nil, item, nil)
}

func (c *Client) ClearWishlist(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/wishlist/clear-wishlist", nil, map[string]string{"userId": userID}, nil)
}

func (c *Client) SyncWishlist(ctx context.Context, req WishlistSyncRequest) (WishlistSyncResult, error) {
	var res WishlistSyncResult
	if err := c.do(ctx, http.MethodPost, "/wishlist/sync", nil, req, &res); err != nil {
		return WishlistSyncResult{}, err
	}
	return res, nil
}

func (c *Client) GetWishlistItems(ctx context.Context, userID string) ([]models.WishlistEntry, error) {
	var resp WishlistResponse
	q := url.Values{"userId": {userID}}
	if err := c.do(ctx, http.MethodGet, "/wishlist/get-wishlist-items", q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []models.WishlistEntry{}, nil
	}
	return resp.Items, nil
}
