package apiclient

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/briangreenhill/xui-console/internal/auth"
)

// AuthCheckPath is the admin API endpoint reporting session status.
const AuthCheckPath = "/api/auth/check"

// CheckAuth asks the admin API whether the visitor's session is
// authenticated. Any failure, including a non-2xx status, is an error.
func (c *Client) CheckAuth(ctx context.Context) (bool, error) {
	var status auth.Status
	if err := c.Get(ctx, AuthCheckPath, &status); err != nil {
		return false, err
	}
	return status.Authenticated, nil
}

// Login posts credentials to the admin API. The returned response carries
// the session cookie the API set.
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, *Response, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/api/auth/login", req)
	if err != nil {
		return nil, nil, err
	}
	var out auth.LoginResponse
	if err := resp.Decode(&out); err != nil {
		return nil, nil, err
	}
	return &out, resp, nil
}

// Me returns the authenticated admin.
func (c *Client) Me(ctx context.Context) (*auth.UserInfo, error) {
	var u auth.UserInfo
	if err := c.Get(ctx, "/api/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the visitor's session. The returned response carries the
// cookie that clears it.
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil)
}

// Node is a managed node as reported by the admin API.
type Node struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Port      int       `json:"port"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Nodes lists the managed nodes.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	if err := c.Get(ctx, "/api/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}
