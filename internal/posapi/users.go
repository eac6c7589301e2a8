package posapi

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) RegisterUser(ctx context.Context, in RegisterUser) (User, error) {
	var out User
	if err := c.write(ctx, http.MethodPost, "/user/register", in, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.get(ctx, "/user/all", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int64, in UpdateUser) error {
	return c.write(ctx, http.MethodPut, fmt.Sprintf("/user/%d", id), in, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.write(ctx, http.MethodDelete, fmt.Sprintf("/user/%d", id), nil, nil)
}
