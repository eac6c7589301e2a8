package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"pos_console/internal/config"
	"pos_console/internal/posapi"
	"pos_console/internal/posapi/posapitest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var menu = []posapi.Product{
	{ID: 1, Name: "Café con leche", Category: posapi.CategoryHot, Price: decimal.NewFromInt(3500)},
	{ID: 2, Name: "Granizado de café", Category: posapi.CategoryCold, Price: decimal.NewFromInt(6000)},
	{ID: 3, Name: "Tinto", Category: posapi.CategoryHot, Price: decimal.NewFromInt(2000)},
	{ID: 4, Name: "Agua", Category: posapi.CategoryBeverages, Price: decimal.NewFromInt(2500)},
	{ID: 5, Name: "Queso extra", Category: posapi.CategoryAdditions, Price: decimal.NewFromInt(1500)},
}

func names(products []posapi.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		category string
		search   string
		want     []string
	}{
		{"no restriction", "", "", names(menu)},
		{"all", "ALL", "", names(menu)},
		{"todos lower case", "todos", "  ", names(menu)},
		{"category", "CALIENTE", "", []string{"Café con leche", "Tinto"}},
		{"category alias", "hot", "", []string{"Café con leche", "Tinto"}},
		{"search ignores case", "ALL", "CAFÉ", []string{"Café con leche", "Granizado de café"}},
		{"search trimmed", "", "  tin ", []string{"Tinto"}},
		{"both", "FRIO", "café", []string{"Granizado de café"}},
		{"no match", "BEBIDAS", "café", []string{}},
		{"unknown category", "SOPAS", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Filter(menu, tt.category, tt.search)))
		})
	}
}

func TestFilterProperties(t *testing.T) {
	input := append([]posapi.Product(nil), menu...)

	once := Filter(input, "CALIENTE", "a")
	twice := Filter(once, "CALIENTE", "a")
	assert.Equal(t, once, twice)
	assert.Equal(t, menu, input)

	everything := Filter(input, "ALL", "")
	assert.Equal(t, input, everything)
	everything[0].Name = "changed"
	assert.Equal(t, "Café con leche", input[0].Name)

	for _, p := range Filter(input, "", "o") {
		assert.Contains(t, input, p)
	}
	assert.Empty(t, Filter(nil, "", ""))
}

type fakeSource struct {
	products []posapi.Product
	err      error
	calls    int
}

func (f *fakeSource) ListProducts(context.Context) ([]posapi.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeSource) ListProductsByCategory(_ context.Context, c posapi.Category) ([]posapi.Product, error) {
	return Filter(f.products, string(c), ""), f.err
}

func (f *fakeSource) ListLowStock(context.Context) ([]posapi.StockAlert, error) {
	return nil, f.err
}

func (f *fakeSource) CreateProduct(_ context.Context, in posapi.ProductInput) (posapi.Product, error) {
	return posapi.Product{ID: 99, Name: in.Name}, f.err
}

func (f *fakeSource) UpdateProduct(_ context.Context, id int64, in posapi.ProductInput) (posapi.Product, error) {
	return posapi.Product{ID: id, Name: in.Name}, f.err
}

func (f *fakeSource) DeleteProduct(context.Context, int64) error {
	return f.err
}

func TestLoadKeepsPriorListOnFailure(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("surface", func(t *testing.T) {
		source := &fakeSource{products: menu}
		loader := New(config.ReadPolicySurface, source, zaptest.NewLogger(t))

		_, err := loader.Load(context.Background())
		require.NoError(t, err)

		source.err = boom
		products, err := loader.Load(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, menu, products)
		assert.Equal(t, menu, loader.Products())
	})

	t.Run("log", func(t *testing.T) {
		source := &fakeSource{err: boom}
		loader := New(config.ReadPolicyLog, source, zaptest.NewLogger(t))

		products, err := loader.Load(context.Background())
		assert.NoError(t, err)
		assert.Empty(t, products)
		assert.Equal(t, 1, source.calls)
	})
}

func TestWritesUpdateLoadedList(t *testing.T) {
	source := &fakeSource{products: menu[:2]}
	loader := New(config.ReadPolicySurface, source, nil)
	ctx := context.Background()
	_, err := loader.Load(ctx)
	require.NoError(t, err)

	created, err := loader.Create(ctx, posapi.ProductInput{Name: "Pandebono"})
	require.NoError(t, err)
	_, ok := loader.Find(created.ID)
	assert.True(t, ok)

	_, err = loader.Update(ctx, 1, posapi.ProductInput{Name: "Café doble"})
	require.NoError(t, err)
	p, _ := loader.Find(1)
	assert.Equal(t, "Café doble", p.Name)

	require.NoError(t, loader.Delete(ctx, 2))
	assert.Equal(t, []string{"Café doble", "Pandebono"}, names(loader.Products()))

	source.err = errors.New("nope")
	assert.Error(t, loader.Delete(ctx, 1))
	assert.Len(t, loader.Products(), 2)
}

func TestLoadAgainstBackend(t *testing.T) {
	backend := posapitest.New(t)
	backend.SetProducts(menu...)
	client, _ := backend.LoggedIn(t)
	loader := New(config.ReadPolicySurface, client, zaptest.NewLogger(t))

	products, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, names(menu), names(products))

	hot, err := loader.ByCategory(context.Background(), posapi.CategoryHot)
	require.NoError(t, err)
	assert.Equal(t, []string{"Café con leche", "Tinto"}, names(hot))
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/productos/categoria/CALIENTE"))

	backend.Fail(http.MethodGet, "/productos", http.StatusServiceUnavailable)
	products, err = loader.Load(context.Background())
	var apiErr *posapi.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Len(t, products, len(menu))
}
