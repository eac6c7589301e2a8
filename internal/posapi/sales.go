package posapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// QueryTimeLayout is the format of the inicio/fin query parameters.
const QueryTimeLayout = "2006-01-02T15:04"

func (c *Client) ListUserSales(ctx context.Context, from, to time.Time) ([]Sale, error) {
	var sales []Sale
	query := map[string]string{
		"inicio": from.Format(QueryTimeLayout),
		"fin":    to.Format(QueryTimeLayout),
	}
	if err := c.get(ctx, "/ventas/usuario", query, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (c *Client) CreateSale(ctx context.Context, req SaleRequest) (Sale, error) {
	var out Sale
	if err := c.write(ctx, http.MethodPost, "/ventas", req, &out); err != nil {
		return Sale{}, err
	}
	return out, nil
}

func (c *Client) AppendLineItems(ctx context.Context, saleID int64, items []LineItem) (Sale, error) {
	var out Sale
	path := fmt.Sprintf("/ventas/%d/agregarProductos", saleID)
	if err := c.write(ctx, http.MethodPut, path, appendItemsRequest{Detail: items}, &out); err != nil {
		return Sale{}, err
	}
	return out, nil
}

// RemoveLineItem lets the backend decide between decrementing and removing the line.
func (c *Client) RemoveLineItem(ctx context.Context, saleID, productID int64) (Sale, error) {
	var out Sale
	path := fmt.Sprintf("/ventas/%d/producto/%d", saleID, productID)
	if err := c.write(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return Sale{}, err
	}
	return out, nil
}

func (c *Client) UpdateDiscountAndNote(ctx context.Context, saleID int64, discount decimal.Decimal, note string) (Sale, error) {
	var out Sale
	path := fmt.Sprintf("/ventas/%d/actualizar", saleID)
	body := saleUpdateRequest{Discount: discount, SaleDetail: note}
	if err := c.write(ctx, http.MethodPut, path, body, &out); err != nil {
		return Sale{}, err
	}
	return out, nil
}

func (c *Client) CompleteSale(ctx context.Context, saleID int64) (Sale, error) {
	var out Sale
	path := fmt.Sprintf("/ventas/%d/completar", saleID)
	if err := c.write(ctx, http.MethodPut, path, map[string]any{}, &out); err != nil {
		return Sale{}, err
	}
	return out, nil
}
