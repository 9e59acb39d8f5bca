package api

import (
	"context"
	"net/http"

	"finflare/internal/core"
)

func (c *Client) Login(ctx context.Context, creds core.Credentials) (core.AuthResponse, error) {
	var out core.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/signin", creds, &out)
	return out, err
}

// Register creates an account and returns the backend's confirmation message.
func (c *Client) Register(ctx context.Context, reg core.Registration) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", reg, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ValidateToken checks the token carried by ctx.
func (c *Client) ValidateToken(ctx context.Context) (core.TokenValidation, error) {
	var out core.TokenValidation
	err := c.do(ctx, http.MethodGet, "/auth/validate", nil, &out)
	return out, err
}
