package sale

import (
	"testing"

	"pos_console/internal/posapi"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoice(t *testing.T) {
	s := posapi.Sale{
		ID:       31,
		TableID:  4,
		Status:   posapi.SalePending,
		Discount: decimal.RequireFromString("1500.50"),
		Detail: []posapi.SaleLine{
			{ProductID: 7, Quantity: 3, UnitPrice: decimal.NewFromInt(5000)},
			{ProductID: 9, Quantity: 2, UnitPrice: decimal.RequireFromString("2499.75")},
		},
	}
	names := map[int64]string{7: "Arepa"}

	inv := NewInvoice(s, func(id int64) (string, bool) {
		n, ok := names[id]
		return n, ok
	})

	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "Arepa", inv.Lines[0].Name)
	assert.Equal(t, "Producto 9", inv.Lines[1].Name)
	assert.True(t, decimal.NewFromInt(15000).Equal(inv.Lines[0].Subtotal))
	assert.True(t, decimal.RequireFromString("4999.5").Equal(inv.Lines[1].Subtotal))
	assert.True(t, decimal.RequireFromString("19999.5").Equal(inv.Subtotal))
	assert.True(t, decimal.NewFromInt(18499).Equal(inv.Total))
	assert.Equal(t, NoteFallback, inv.Note)
}

func TestInvoiceWithoutLines(t *testing.T) {
	inv := NewInvoice(posapi.Sale{ID: 1, SaleDetail: NoteCash}, nil)
	assert.Empty(t, inv.Lines)
	assert.True(t, inv.Total.IsZero())
	assert.Equal(t, NoteCash, inv.Note)
}
