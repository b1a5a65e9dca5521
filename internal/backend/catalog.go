package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"bakery-storefront/pkg/models"
)

func (c *Client) ProductsByCategory(ctx context.Context, category string, page, size int) (models.ProductPage, error) {
	var p models.ProductPage
	path := "/products/category/" + url.PathEscape(category)
	q := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	if err := c.do(ctx, http.MethodGet, path, q, nil, &p); err != nil {
		return models.ProductPage{}, err
	}
	return p, nil
}

func (c *Client) Product(ctx context.Context, id int64) (models.Product, error) {
	var p models.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (c *Client) Addons(ctx context.Context) ([]models.AddonDefinition, error) {
	var defs []models.AddonDefinition
	if err := c.do(ctx, http.MethodGet, "/addons/get-all-addon-items", nil, nil, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// IssueDevToken asks the development backend for a signed session token.
func (c *Client) IssueDevToken(ctx context.Context, userID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/token", nil, map[string]string{"userId": userID}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}
