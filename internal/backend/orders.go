package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"bakery-storefront/pkg/models"
)

func (c *Client) GetUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	path := "/orders/user/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", orderID), nil, nil, nil)
}
