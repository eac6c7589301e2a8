package posapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

func (c *Client) ListTables(ctx context.Context) ([]Table, error) {
	var tables []Table
	if err := c.get(ctx, "/mesas", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// ListFreeTables asks the backend for the FREE tables; the filter is server side.
func (c *Client) ListFreeTables(ctx context.Context) ([]Table, error) {
	var tables []Table
	if err := c.get(ctx, "/mesas/libres", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (c *Client) CreateTable(ctx context.Context, number string) (Table, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Table{}, fmt.Errorf("table number is required")
	}
	var out Table
	body := Table{Number: number, State: TableFree}
	if err := c.write(ctx, http.MethodPost, "/mesas", body, &out); err != nil {
		return Table{}, err
	}
	return out, nil
}

// SetTableState sends the state as a bare JSON string body.
func (c *Client) SetTableState(ctx context.Context, id int64, state TableState) (Table, error) {
	body, err := json.Marshal(string(state))
	if err != nil {
		return Table{}, err
	}
	var out Table
	if err := c.write(ctx, http.MethodPut, fmt.Sprintf("/mesas/%d/estado", id), body, &out); err != nil {
		return Table{}, err
	}
	return out, nil
}

func (c *Client) DeleteTable(ctx context.Context, id int64) error {
	return c.write(ctx, http.MethodDelete, fmt.Sprintf("/mesas/%d", id), nil, nil)
}
