// Package catalog covers the product surface: browsing and searching the
// public listing, and the authenticated seller operations (create, update,
// delete, my-listings).
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ecofinds/ecofinds-client/internal/gateway"
	"github.com/ecofinds/ecofinds-client/internal/models"
)

type Client struct {
	gw  *gateway.Client
	log *slog.Logger
}

func NewClient(gw *gateway.Client, log *slog.Logger) *Client {
	return &Client{gw: gw, log: log}
}

type ListParams struct {
	Category string
	Query    string
	Page     int
	PerPage  int
}

// ListProducts fetches one page of the public listing. A category of "All"
// means no category filter, matching the UI's default tab.
func (c *Client) ListProducts(ctx context.Context, params ListParams) (*models.ProductPage, error) {
	q := url.Values{}
	if params.Category != "" && !strings.EqualFold(params.Category, "All") {
		q.Set("category", params.Category)
	}
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(params.PerPage))
	}
	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page models.ProductPage
	if err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: path, Public: true}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	var product models.Product
	err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/products/%d", id),
		Public: true,
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct uploads a new listing as multipart form data.
func (c *Client) CreateProduct(ctx context.Context, form ProductForm) (*models.Product, error) {
	body, err := encodeProductForm(form)
	if err != nil {
		return nil, err
	}
	var product models.Product
	err = c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/products",
		Form:   body,
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct sends changed fields plus the image set to keep. Images not
// listed in ExistingImages are deleted server-side.
func (c *Client) UpdateProduct(ctx context.Context, id int, form ProductForm) (*models.Product, error) {
	body, err := encodeProductForm(form)
	if err != nil {
		return nil, err
	}
	var product models.Product
	err = c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/products/%d", id),
		Form:   body,
	}, &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	return c.gw.Do(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/products/%d", id),
	}, nil)
}

// MyListings returns the authenticated user's own products.
func (c *Client) MyListings(ctx context.Context) ([]models.Product, error) {
	var resp struct {
		Products []models.Product `json:"products"`
	}
	err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/my-listings"}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Filter narrows an already-fetched product list client-side: exact
// category match (empty or "All" matches everything) and case-insensitive
// substring match on title or description.
func Filter(products []models.Product, category, query string) []models.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	anyCategory := category == "" || strings.EqualFold(category, "All")
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if !anyCategory && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}
