package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"pos_console/internal/config"
	"pos_console/internal/posapi"

	"go.uber.org/zap"
)

// Source is the part of the backend client the catalog reads and writes through.
type Source interface {
	ListProducts(ctx context.Context) ([]posapi.Product, error)
	ListProductsByCategory(ctx context.Context, category posapi.Category) ([]posapi.Product, error)
	ListLowStock(ctx context.Context) ([]posapi.StockAlert, error)
	CreateProduct(ctx context.Context, in posapi.ProductInput) (posapi.Product, error)
	UpdateProduct(ctx context.Context, id int64, in posapi.ProductInput) (posapi.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Loader keeps the last product list fetched from the backend. It is owned by the
// console loop and is not safe for concurrent use.
type Loader struct {
	source   Source
	policy   config.ReadPolicy
	logger   *zap.Logger
	products []posapi.Product
}

func New(policy config.ReadPolicy, source Source, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		source: source,
		policy: policy,
		logger: logger.Named("catalog"),
	}
}

// Load refreshes the product list. A failed read keeps the previous list; the error is
// returned or only logged depending on the read policy.
func (l *Loader) Load(ctx context.Context) ([]posapi.Product, error) {
	products, err := l.source.ListProducts(ctx)
	if err != nil {
		l.logger.Warn("product list not refreshed", zap.Int("stale", len(l.products)), zap.Error(err))
		if l.policy.Surface() {
			return l.Products(), fmt.Errorf("load products: %w", err)
		}
		return l.Products(), nil
	}

	l.products = products
	l.logger.Debug("products loaded", zap.Int("count", len(products)))
	return l.Products(), nil
}

// Products is a copy of the last loaded list.
func (l *Loader) Products() []posapi.Product {
	return slices.Clone(l.products)
}

func (l *Loader) Find(id int64) (posapi.Product, bool) {
	for _, p := range l.products {
		if p.ID == id {
			return p, true
		}
	}
	return posapi.Product{}, false
}

// ByCategory asks the backend for one category without touching the loaded list.
func (l *Loader) ByCategory(ctx context.Context, category posapi.Category) ([]posapi.Product, error) {
	products, err := l.source.ListProductsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load %s products: %w", category, err)
	}
	return products, nil
}

func (l *Loader) LowStock(ctx context.Context) ([]posapi.StockAlert, error) {
	alerts, err := l.source.ListLowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("load low stock: %w", err)
	}
	return alerts, nil
}

func (l *Loader) Create(ctx context.Context, in posapi.ProductInput) (posapi.Product, error) {
	product, err := l.source.CreateProduct(ctx, in)
	if err != nil {
		return posapi.Product{}, err
	}
	l.products = append(l.products, product)
	l.logger.Info("product created", zap.Int64("id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (l *Loader) Update(ctx context.Context, id int64, in posapi.ProductInput) (posapi.Product, error) {
	product, err := l.source.UpdateProduct(ctx, id, in)
	if err != nil {
		return posapi.Product{}, err
	}
	if i := l.index(id); i >= 0 {
		l.products[i] = product
	}
	l.logger.Info("product updated", zap.Int64("id", id))
	return product, nil
}

func (l *Loader) Delete(ctx context.Context, id int64) error {
	if err := l.source.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if i := l.index(id); i >= 0 {
		l.products = slices.Delete(l.products, i, i+1)
	}
	l.logger.Info("product deleted", zap.Int64("id", id))
	return nil
}

func (l *Loader) index(id int64) int {
	return slices.IndexFunc(l.products, func(p posapi.Product) bool { return p.ID == id })
}

// Filter narrows products to a category and a name search. An empty category, ALL or
// TODOS select every category; the search is a trimmed, case-insensitive substring of
// the name. The input is never modified and the result keeps its order.
func Filter(products []posapi.Product, category, search string) []posapi.Product {
	wantCategory := normalizeCategory(category)
	needle := strings.ToLower(strings.TrimSpace(search))

	out := make([]posapi.Product, 0, len(products))
	for _, p := range products {
		if wantCategory != "" && p.Category != wantCategory {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func normalizeCategory(category string) posapi.Category {
	raw := strings.ToUpper(strings.TrimSpace(category))
	switch raw {
	case "", "ALL", "TODOS":
		return ""
	}
	if c, ok := posapi.ParseCategory(raw); ok {
		return c
	}
	return posapi.Category(raw)
}
