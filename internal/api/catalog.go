package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ListProducts fetches one page of the product catalog, optionally filtered
// by a search string.
func (c *Client) ListProducts(ctx context.Context, search string, page, pageSize int) (Page[Product], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	var out Page[Product]
	err := c.get(ctx, "/products", q, &out)
	return out, err
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id int) (*Product, error) {
	var out Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct creates a catalog entry.
func (c *Client) CreateProduct(ctx context.Context, name, description string) (*Product, error) {
	payload := map[string]string{"name": name, "description": description}
	var out Product
	if err := c.post(ctx, "/products", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProductLicenses fetches the licenses belonging to a product.
func (c *Client) ListProductLicenses(ctx context.Context, productID int) ([]License, error) {
	var out []License
	err := c.get(ctx, fmt.Sprintf("/products/%d/licenses", productID), nil, &out)
	return out, err
}

// GetLicense fetches a single license.
func (c *Client) GetLicense(ctx context.Context, id int) (*License, error) {
	var out License
	if err := c.get(ctx, fmt.Sprintf("/licenses/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLicense creates a license under a product.
func (c *Client) CreateLicense(ctx context.Context, productID int, name, description string) (*License, error) {
	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"product_id":  productID,
	}
	var out License
	if err := c.post(ctx, "/licenses", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MemoSource is the strategy set for memo operations, selected once per
// detail controller instead of branching on the entity type per call.
type MemoSource struct {
	List   func(ctx context.Context, ownerID int) ([]Memo, error)
	Create func(ctx context.Context, ownerID int, content string) (*Memo, error)
	Delete func(ctx context.Context, memoID int) error
}

// ProductMemos returns the memo strategy bound to product endpoints.
func (c *Client) ProductMemos() MemoSource {
	return MemoSource{
		List: func(ctx context.Context, productID int) ([]Memo, error) {
			var out []Memo
			err := c.get(ctx, fmt.Sprintf("/products/%d/memos", productID), nil, &out)
			return out, err
		},
		Create: func(ctx context.Context, productID int, content string) (*Memo, error) {
			var out Memo
			payload := map[string]string{"content": content}
			if err := c.post(ctx, fmt.Sprintf("/products/%d/memos", productID), payload, &out); err != nil {
				return nil, err
			}
			return &out, nil
		},
		Delete: func(ctx context.Context, memoID int) error {
			return c.delete(ctx, fmt.Sprintf("/product-memos/%d", memoID), nil)
		},
	}
}

// LicenseMemos returns the memo strategy bound to license endpoints.
func (c *Client) LicenseMemos() MemoSource {
	return MemoSource{
		List: func(ctx context.Context, licenseID int) ([]Memo, error) {
			var out []Memo
			err := c.get(ctx, fmt.Sprintf("/licenses/%d/memos", licenseID), nil, &out)
			return out, err
		},
		Create: func(ctx context.Context, licenseID int, content string) (*Memo, error) {
			var out Memo
			payload := map[string]string{"content": content}
			if err := c.post(ctx, fmt.Sprintf("/licenses/%d/memos", licenseID), payload, &out); err != nil {
				return nil, err
			}
			return &out, nil
		},
		Delete: func(ctx context.Context, memoID int) error {
			return c.delete(ctx, fmt.Sprintf("/license-memos/%d", memoID), nil)
		},
	}
}
