// ABOUTME: Authorization policies applied to a freshly identified user
// ABOUTME: The admin policy relies on the server's answer, never on a fixed identity

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/edushare/internal/api"
)

// ErrNotAuthorized is returned when the identified user may not use this console.
var ErrNotAuthorized = errors.New("not authorized for this console")

// Authorizer decides whether an identified user may hold a session. It runs
// with the user's token already attached to the client.
type Authorizer interface {
	Authorize(ctx context.Context, u *api.User) error
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(ctx context.Context, u *api.User) error

func (f AuthorizerFunc) Authorize(ctx context.Context, u *api.User) error { return f(ctx, u) }

// AllowAll accepts every identified user. The portal uses it.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, *api.User) error { return nil })

// AdminAuthorizer accepts users flagged is_admin or whose role equals Role.
// When the identity carries neither claim, Check calls an admin-only
// endpoint: a 403 means not authorized, any other failure is returned as is.
type AdminAuthorizer struct {
	Role  string
	Check func(ctx context.Context) error
}

func (a AdminAuthorizer) Authorize(ctx context.Context, u *api.User) error {
	if u == nil {
		return ErrNotAuthorized
	}
	if u.IsAdmin || (a.Role != "" && u.Role == a.Role) {
		return nil
	}
	if a.Check == nil {
		return ErrNotAuthorized
	}

	err := a.Check(ctx)
	switch {
	case err == nil:
		return nil
	case api.StatusOf(err) == http.StatusForbidden:
		return ErrNotAuthorized
	default:
		return fmt.Errorf("checking admin access: %w", err)
	}
}

// ConfigsCheck is an AdminAuthorizer.Check listing the admin config entries.
func ConfigsCheck(client *api.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := client.ListConfigs(ctx)
		return err
	}
}
