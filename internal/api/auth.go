// ABOUTME: Authentication endpoints: login, identity lookup and registration
// ABOUTME: Login does not attach the returned token; callers decide when to trust it

package api

import (
	"context"
	"errors"
	"net/http"
)

// ErrEmptyToken is returned when a login response carries no access token.
var ErrEmptyToken = errors.New("login response carried no access token")

// Login exchanges phone and password for an access token.
func (c *Client) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	var res LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", nil, LoginRequest{Phone: phone, Password: password}, &res); err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, ErrEmptyToken
	}
	return &res, nil
}

// Me returns the identity bound to the attached token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Register creates a new portal account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
