// ABOUTME: Admin console holding the user, resource and audit log lists
// ABOUTME: Lists are pager controllers over the bare-array admin endpoints

package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/busy"
	"github.com/2389/edushare/internal/pager"
	"github.com/2389/edushare/internal/prompt"
)

// Backend defines the API operations the console needs.
type Backend interface {
	ListUsers(ctx context.Context, q api.ListQuery) ([]api.User, error)
	UpdateUser(ctx context.Context, id int64, upd api.UserUpdate) error
	ListAdminResources(ctx context.Context, q api.ListQuery) ([]api.Resource, error)
	UpdateResource(ctx context.Context, id int64, upd api.ResourceUpdate) error
	DeleteResource(ctx context.Context, id int64) error
	ListLogs(ctx context.Context, q api.ListQuery) ([]api.LogEntry, error)
}

// Console is the state of the admin screens.
type Console struct {
	backend Backend
	logger  *slog.Logger

	Users     *pager.List[api.User]
	Resources *pager.List[api.Resource]
	Logs      *pager.List[api.LogEntry]

	deleting busy.Flag
}

// NewConsole creates a console whose lists use pageSize (0 for the default).
func NewConsole(b Backend, pageSize int) *Console {
	c := &Console{
		backend: b,
		logger:  slog.Default().With("component", "admin"),
	}
	c.Users = pager.New(c.fetchUsers, pageSize)
	c.Resources = pager.New(c.fetchResources, pageSize)
	c.Logs = pager.New(c.fetchLogs, pageSize)
	return c
}

func (c *Console) fetchUsers(ctx context.Context, q pager.Query) ([]api.User, error) {
	return c.backend.ListUsers(ctx, listQuery(q))
}

func (c *Console) fetchResources(ctx context.Context, q pager.Query) ([]api.Resource, error) {
	return c.backend.ListAdminResources(ctx, listQuery(q))
}

func (c *Console) fetchLogs(ctx context.Context, q pager.Query) ([]api.LogEntry, error) {
	// the log endpoint takes no keyword
	q.Keyword = ""
	return c.backend.ListLogs(ctx, listQuery(q))
}

func listQuery(q pager.Query) api.ListQuery {
	return api.ListQuery{Page: q.Page, Size: q.Size, Keyword: q.Keyword}
}

// DeleteResource asks for confirmation, deletes the resource and reloads the
// resource list. A refusal returns prompt.ErrCancelled without any call.
func (c *Console) DeleteResource(ctx context.Context, res api.Resource, confirm prompt.Confirmer) error {
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("确定要删除资源 \"%s\" 吗？", res.Title))
	if err != nil {
		return fmt.Errorf("confirming delete: %w", err)
	}
	if !ok {
		return prompt.ErrCancelled
	}

	return c.deleting.Do(func() error {
		if err := c.backend.DeleteResource(ctx, res.ID); err != nil {
			return fmt.Errorf("deleting resource %d: %w", res.ID, err)
		}
		c.logger.Info("resource deleted", "resource_id", res.ID, "title", res.Title)

		if err := c.Resources.Load(ctx); err != nil {
			c.logger.Error("reloading resources after delete", "error", err)
		}
		return nil
	})
}
