package sale

import (
	"fmt"
	"time"

	"pos_console/internal/posapi"

	"github.com/shopspring/decimal"
)

type InvoiceLine struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Invoice is the printable form of a persisted sale. Amounts are recomputed from the
// lines rather than taken from the sale's total.
type Invoice struct {
	SaleID   int64
	TableID  int64
	Date     time.Time
	Status   posapi.SaleStatus
	Note     string
	Lines    []InvoiceLine
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// NewInvoice derives the invoice of s. name resolves product names and may be nil;
// unknown products are shown as "Producto <id>".
func NewInvoice(s posapi.Sale, name func(productID int64) (string, bool)) Invoice {
	inv := Invoice{
		SaleID:   s.ID,
		TableID:  s.TableID,
		Date:     s.Date.Time,
		Status:   s.Status,
		Note:     s.SaleDetail,
		Lines:    make([]InvoiceLine, 0, len(s.Detail)),
		Subtotal: decimal.Zero,
		Discount: s.Discount,
	}
	if inv.Note == "" {
		inv.Note = NoteFallback
	}

	for _, line := range s.Detail {
		label := fmt.Sprintf("Producto %d", line.ProductID)
		if name != nil {
			if n, ok := name(line.ProductID); ok {
				label = n
			}
		}
		subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		inv.Lines = append(inv.Lines, InvoiceLine{
			ProductID: line.ProductID,
			Name:      label,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  subtotal,
		})
		inv.Subtotal = inv.Subtotal.Add(subtotal)
	}
	inv.Total = inv.Subtotal.Sub(inv.Discount)
	return inv
}
