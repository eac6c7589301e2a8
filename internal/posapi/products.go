package posapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"
)

var ErrImageRequired = errors.New("product image is required")

// ProductInput is the form of a product create or update. Image is optional on update.
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Stock       int
	Category    Category
	Image       io.Reader
	ImageName   string
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.New("product name is required")
	case in.Price.IsNegative():
		return errors.New("product price cannot be negative")
	case in.Stock < 0:
		return errors.New("product stock cannot be negative")
	}
	if _, ok := ParseCategory(string(in.Category)); !ok {
		return fmt.Errorf("unknown product category %q", in.Category)
	}
	return nil
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.get(ctx, "/productos", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ListProductsByCategory(ctx context.Context, category Category) ([]Product, error) {
	var products []Product
	path := fmt.Sprintf("/productos/categoria/%s", category)
	if err := c.get(ctx, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ListLowStock(ctx context.Context) ([]StockAlert, error) {
	var alerts []StockAlert
	if err := c.get(ctx, "/productos/stock-bajo", nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if in.Image == nil {
		return Product{}, ErrImageRequired
	}
	return c.sendProduct(ctx, http.MethodPost, "/productos", in)
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	return c.sendProduct(ctx, http.MethodPut, fmt.Sprintf("/productos/%d", id), in)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.write(ctx, http.MethodDelete, fmt.Sprintf("/productos/%d", id), nil, nil)
}

// sendProduct posts the multipart form the backend expects: a JSON "producto" part
// and an optional "imagen" file part.
func (c *Client) sendProduct(ctx context.Context, method, path string, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	category, _ := ParseCategory(string(in.Category))

	payload, err := json.Marshal(Product{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Description: in.Description,
		Stock:       in.Stock,
		Category:    category,
	})
	if err != nil {
		return Product{}, fmt.Errorf("encode product: %w", err)
	}

	var out Product
	req := c.request(ctx).
		SetResult(&out).
		SetMultipartField("producto", "producto.json", apiMediaType, bytes.NewReader(payload))

	if in.Image != nil {
		data, err := io.ReadAll(in.Image)
		if err != nil {
			return Product{}, fmt.Errorf("read product image: %w", err)
		}
		name := in.ImageName
		if name == "" {
			name = "imagen"
		}
		contentType := mimetype.Detect(data).String()
		req.SetMultipartField("imagen", name, contentType, bytes.NewReader(data))
	}

	if err := c.send(ctx, req, method, path); err != nil {
		return Product{}, err
	}
	return out, nil
}
