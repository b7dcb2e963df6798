// ABOUTME: Dashboard summary built from the first page of every admin list
// ABOUTME: Totals are estimates; a full first page is reported as a lower bound

package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/pager"
)

// recentLogs is how many audit records the dashboard shows.
const recentLogs = 5

// Summary is the dashboard view.
type Summary struct {
	Users      pager.Total
	Resources  pager.Total
	Logs       pager.Total
	RecentLogs []api.LogEntry
}

// Dashboard fetches the unfiltered first page of every list concurrently and
// summarises the results. The lists keep their own page and keyword. Lists
// that fail to load report an Unknown total and their errors are joined.
func (c *Console) Dashboard(ctx context.Context) (Summary, error) {
	var (
		s    Summary
		logs []api.LogEntry
		errs = make([]error, 3)
		wg   sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		s.Users, _, errs[0] = firstPage(ctx, "users", c.Users, c.fetchUsers)
	}()
	go func() {
		defer wg.Done()
		s.Resources, _, errs[1] = firstPage(ctx, "resources", c.Resources, c.fetchResources)
	}()
	go func() {
		defer wg.Done()
		s.Logs, logs, errs[2] = firstPage(ctx, "logs", c.Logs, c.fetchLogs)
	}()
	wg.Wait()

	if errs[2] == nil {
		if len(logs) > recentLogs {
			logs = logs[:recentLogs]
		}
		s.RecentLogs = logs
	}

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("dashboard incomplete", "error", err)
	}
	return s, err
}

// firstPage loads page 1 at the list's size without touching the list.
func firstPage[T any](ctx context.Context, name string, l *pager.List[T], fetch pager.Fetcher[T]) (pager.Total, []T, error) {
	q := pager.Query{Page: 1, Size: l.Size()}
	items, err := fetch(ctx, q)
	if err != nil {
		return pager.Total{Kind: pager.Unknown}, nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return pager.TotalOf(q.Page, q.Size, len(items)), items, nil
}
