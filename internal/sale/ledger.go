package sale

import (
	"context"
	"fmt"
	"slices"
	"time"

	"pos_console/internal/config"
	"pos_console/internal/posapi"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Mutator interface {
	ListUserSales(ctx context.Context, from, to time.Time) ([]posapi.Sale, error)
	AppendLineItems(ctx context.Context, saleID int64, items []posapi.LineItem) (posapi.Sale, error)
	RemoveLineItem(ctx context.Context, saleID, productID int64) (posapi.Sale, error)
	UpdateDiscountAndNote(ctx context.Context, saleID int64, discount decimal.Decimal, note string) (posapi.Sale, error)
	CompleteSale(ctx context.Context, saleID int64) (posapi.Sale, error)
}

type Action string

const (
	ActionView           Action = "view"
	ActionAppendItems    Action = "add"
	ActionRemoveItem     Action = "remove"
	ActionUpdateDiscount Action = "update"
	ActionComplete       Action = "complete"
)

// Actions lists what may be done with sale. A completed sale can only be viewed.
func Actions(sale posapi.Sale) []Action {
	if !sale.Pending() {
		return []Action{ActionView}
	}
	return []Action{ActionView, ActionAppendItems, ActionRemoveItem, ActionUpdateDiscount, ActionComplete}
}

// Ledger is the local view of the user's sales over a period. Every successful
// mutation replaces the local snapshot of the sale with the backend's answer.
type Ledger struct {
	client Mutator
	policy config.ReadPolicy
	logger *zap.Logger

	from  time.Time
	to    time.Time
	sales []posapi.Sale
}

func NewLedger(policy config.ReadPolicy, client Mutator, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		client: client,
		policy: policy,
		logger: logger.Named("ledger"),
	}
}

func (l *Ledger) Load(ctx context.Context, from, to time.Time) ([]posapi.Sale, error) {
	if to.Before(from) {
		return l.Sales(), &ValidationError{Field: "range", Message: "end is before start"}
	}
	sales, err := l.client.ListUserSales(ctx, from, to)
	if err != nil {
		l.logger.Warn("sales not refreshed", zap.Time("from", from), zap.Time("to", to), zap.Error(err))
		if l.policy.Surface() {
			return l.Sales(), fmt.Errorf("load sales: %w", err)
		}
		return l.Sales(), nil
	}

	l.from, l.to = from, to
	l.sales = sales
	l.logger.Debug("sales loaded", zap.Int("count", len(sales)))
	return l.Sales(), nil
}

// Period is the range of the last successful load.
func (l *Ledger) Period() (time.Time, time.Time) {
	return l.from, l.to
}

func (l *Ledger) Sales() []posapi.Sale {
	return slices.Clone(l.sales)
}

func (l *Ledger) Get(id int64) (posapi.Sale, bool) {
	if i := l.index(id); i >= 0 {
		return l.sales[i], true
	}
	return posapi.Sale{}, false
}

func (l *Ledger) AppendItems(ctx context.Context, saleID int64, items []posapi.LineItem) (posapi.Sale, error) {
	if len(items) == 0 {
		return posapi.Sale{}, &ValidationError{Field: "detail", Message: "add at least one product"}
	}
	return l.mutate(ctx, saleID, ActionAppendItems, func(ctx context.Context) (posapi.Sale, error) {
		return l.client.AppendLineItems(ctx, saleID, items)
	})
}

func (l *Ledger) RemoveItem(ctx context.Context, saleID, productID int64) (posapi.Sale, error) {
	return l.mutate(ctx, saleID, ActionRemoveItem, func(ctx context.Context) (posapi.Sale, error) {
		return l.client.RemoveLineItem(ctx, saleID, productID)
	})
}

func (l *Ledger) UpdateDiscountAndNote(ctx context.Context, saleID int64, discount decimal.Decimal, note string) (posapi.Sale, error) {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return l.mutate(ctx, saleID, ActionUpdateDiscount, func(ctx context.Context) (posapi.Sale, error) {
		return l.client.UpdateDiscountAndNote(ctx, saleID, discount, note)
	})
}

func (l *Ledger) Complete(ctx context.Context, saleID int64) (posapi.Sale, error) {
	return l.mutate(ctx, saleID, ActionComplete, func(ctx context.Context) (posapi.Sale, error) {
		return l.client.CompleteSale(ctx, saleID)
	})
}

func (l *Ledger) mutate(ctx context.Context, saleID int64, action Action, call func(context.Context) (posapi.Sale, error)) (posapi.Sale, error) {
	i := l.index(saleID)
	if i < 0 {
		return posapi.Sale{}, fmt.Errorf("%w: %d", ErrUnknownSale, saleID)
	}
	if !slices.Contains(Actions(l.sales[i]), action) {
		return posapi.Sale{}, fmt.Errorf("%w: sale %d is %s", ErrSaleNotPending, saleID, l.sales[i].Status)
	}

	sale, err := call(ctx)
	if err != nil {
		l.logger.Warn("sale not changed", zap.Int64("sale_id", saleID), zap.String("action", string(action)), zap.Error(err))
		return posapi.Sale{}, err
	}

	// The index may have moved if a hook reloaded the ledger meanwhile.
	if i = l.index(saleID); i >= 0 {
		l.sales[i] = sale
	}
	l.logger.Info("sale changed",
		zap.Int64("sale_id", saleID),
		zap.String("action", string(action)),
		zap.String("status", string(sale.Status)),
	)
	return sale, nil
}

func (l *Ledger) index(id int64) int {
	return slices.IndexFunc(l.sales, func(s posapi.Sale) bool { return s.ID == id })
}
