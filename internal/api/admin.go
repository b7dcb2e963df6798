// ABOUTME: Admin console endpoints for configs, users, resources and audit logs
// ABOUTME: List endpoints return bare arrays with no total count

package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListConfigs returns every configuration entry. The set is small and unpaginated.
func (c *Client) ListConfigs(ctx context.Context) ([]ConfigEntry, error) {
	var entries []ConfigEntry
	if err := c.doJSON(ctx, http.MethodGet, "/admin/configs", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateConfig creates a configuration entry. The server rejects duplicate keys.
func (c *Client) CreateConfig(ctx context.Context, req CreateConfigRequest) (*ConfigEntry, error) {
	var entry ConfigEntry
	if err := c.doJSON(ctx, http.MethodPost, "/admin/configs", nil, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateConfig replaces the document and description of an existing entry.
func (c *Client) UpdateConfig(ctx context.Context, id int64, req UpdateConfigRequest) (*ConfigEntry, error) {
	var entry ConfigEntry
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/configs/%d", id), nil, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListUsers returns one page of users.
func (c *Client) ListUsers(ctx context.Context, q ListQuery) ([]User, error) {
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "/admin/users", q.values(), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser sets points, level and active flag of a user.
func (c *Client) UpdateUser(ctx context.Context, id int64, upd UserUpdate) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d", id), nil, upd, nil)
}

// ListAdminResources returns one page of resources, including inactive ones.
func (c *Client) ListAdminResources(ctx context.Context, q ListQuery) ([]Resource, error) {
	var resources []Resource
	if err := c.doJSON(ctx, http.MethodGet, "/admin/resources", q.values(), nil, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// UpdateResource edits a resource's metadata.
func (c *Client) UpdateResource(ctx context.Context, id int64, upd ResourceUpdate) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/resources/%d", id), nil, upd, nil)
}

// DeleteResource removes a resource.
func (c *Client) DeleteResource(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/admin/resources/%d", id), nil, nil, nil)
}

// ListLogs returns one page of admin audit records. Keyword is ignored.
func (c *Client) ListLogs(ctx context.Context, q ListQuery) ([]LogEntry, error) {
	q.Keyword = ""
	var logs []LogEntry
	if err := c.doJSON(ctx, http.MethodGet, "/admin/logs", q.values(), nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
