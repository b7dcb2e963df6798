// ABOUTME: Management subcommands over the paginated user, resource and audit log lists
// ABOUTME: Totals are estimates because the admin endpoints return bare arrays

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/edushare/internal/admin"
	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/pager"
	"github.com/2389/edushare/internal/prompt"
)

// maxScanPages bounds the page walk used to find a record by id.
const maxScanPages = 50

func (a *app) console(ctx context.Context) (*admin.Console, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	return admin.NewConsole(a.client, a.cfg.Pagination.Size), nil
}

// loadPage applies --page and --keyword flags and loads the list with one fetch.
func loadPage[T any](ctx context.Context, l *pager.List[T], flags map[string]string) error {
	kw := l.Keyword()
	if v, ok := flags["keyword"]; ok {
		kw = v
	}
	page := 1
	if raw, ok := flags["page"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid page %q", raw)
		}
		page = n
	}
	return l.SetQuery(ctx, kw, page)
}

// findByID walks the list from page 1 until match finds a record or a short page ends it.
func findByID[T any](ctx context.Context, l *pager.List[T], match func(T) bool) (T, error) {
	var zero T
	for page := 1; page <= maxScanPages; page++ {
		if err := l.SetPage(ctx, page); err != nil {
			return zero, err
		}
		for _, item := range l.Items() {
			if match(item) {
				return item, nil
			}
		}
		if !l.HasNext() {
			break
		}
	}
	return zero, errNotFound
}

var errNotFound = errors.New("record not found")

// listError keeps local paging errors and maps server errors to their detail.
func listError(err error, fallback string) error {
	if errors.Is(err, pager.ErrInvalidPage) {
		return err
	}
	return errors.New(api.Message(err, fallback))
}

func printFooter[T any](l *pager.List[T]) {
	fmt.Printf("  page %d · %d per page · total %s", l.Page(), l.Size(), l.Total())
	if l.HasNext() {
		fmt.Printf(" · next: --page %d", l.Page()+1)
	}
	fmt.Println()
	fmt.Println()
}

// cmdDashboard shows list totals and the latest admin actions
func (a *app) cmdDashboard(ctx context.Context) error {
	c, err := a.console(ctx)
	if err != nil {
		return err
	}

	summary, err := c.Dashboard(ctx)

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("  Dashboard")
	cyan.Println("  ---------")
	green.Printf("  Users:      ")
	fmt.Println(summary.Users)
	green.Printf("  Resources:  ")
	fmt.Println(summary.Resources)
	green.Printf("  Log items:  ")
	fmt.Println(summary.Logs)

	if len(summary.RecentLogs) > 0 {
		fmt.Println()
		cyan.Println("  Recent actions")
		cyan.Println("  --------------")
		printLogs(summary.RecentLogs)
	}
	fmt.Println()

	if err != nil {
		color.Yellow("  some lists failed to load: %v\n", err)
	}
	return nil
}

// cmdUsers lists or edits users
func (a *app) cmdUsers(ctx context.Context, args []string) error {
	c, err := a.console(ctx)
	if err != nil {
		return err
	}

	subcmd := "list"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
		args = args[1:]
	}
	flags, positional := parseArgs(args)

	switch subcmd {
	case "list", "ls":
		if err := loadPage(ctx, c.Users, flags); err != nil {
			return listError(err, "获取用户列表失败")
		}
		cyan := color.New(color.FgCyan)
		fmt.Println()
		cyan.Println("  Users")
		cyan.Println("  -----")
		if len(c.Users.Items()) == 0 {
			fmt.Println("  (no users)")
			fmt.Println()
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tPHONE\tNICKNAME\tLEVEL\tPOINTS\tACTIVE\tCREATED")
		for _, u := range c.Users.Items() {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%d\t%s\t%s\n",
				u.ID, u.Phone, truncate(u.Nickname, 16), u.Level, u.Points, yesNo(u.IsActive), orDash(u.CreatedAt))
		}
		w.Flush()
		printFooter(c.Users)
		return nil
	case "edit":
		if len(positional) != 1 {
			return fmt.Errorf("usage: users edit <id> [--points n] [--level l] [--active true|false]")
		}
		id, err := parseID(positional[0])
		if err != nil {
			return err
		}
		u, err := findByID(ctx, c.Users, func(u api.User) bool { return u.ID == id })
		if err != nil {
			return fmt.Errorf("user %d: %w", id, err)
		}

		ed := c.EditUser(u)
		var parseErr error
		if err := ed.Edit(func(f *admin.UserForm) {
			if raw, ok := flags["points"]; ok {
				n, err := strconv.Atoi(raw)
				if err != nil {
					parseErr = fmt.Errorf("invalid points %q", raw)
					return
				}
				f.Points = n
			}
			if lvl, ok := flags["level"]; ok {
				f.Level = lvl
			}
			if raw, ok := flags["active"]; ok {
				b, err := parseBool(raw)
				if err != nil {
					parseErr = err
					return
				}
				f.IsActive = b
			}
		}); err != nil {
			return err
		}
		if parseErr != nil {
			ed.Cancel()
			return parseErr
		}
		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		color.New(color.FgGreen).Printf("✓ 用户 %d 已更新\n", id)
		return nil
	default:
		return fmt.Errorf("unknown users subcommand: %s (use list, edit)", subcmd)
	}
}

// cmdResources lists, edits or deletes resources
func (a *app) cmdResources(ctx context.Context, args []string) error {
	c, err := a.console(ctx)
	if err != nil {
		return err
	}

	subcmd := "list"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
		args = args[1:]
	}
	flags, positional := parseArgs(args, "yes")

	switch subcmd {
	case "list", "ls":
		if err := loadPage(ctx, c.Resources, flags); err != nil {
			return listError(err, "获取资源列表失败")
		}
		cyan := color.New(color.FgCyan)
		fmt.Println()
		cyan.Println("  Resources")
		cyan.Println("  ---------")
		if len(c.Resources.Items()) == 0 {
			fmt.Println("  (no resources)")
			fmt.Println()
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tTITLE\tGRADE\tSUBJECT\tTYPE\tDOWNLOADS\tACTIVE")
		for _, r := range c.Resources.Items() {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, truncate(r.Title, 24), truncate(r.Grade, 16), r.Subject, r.ResourceType, r.DownloadCount, yesNo(r.IsActive))
		}
		w.Flush()
		printFooter(c.Resources)
		return nil
	case "edit":
		if len(positional) != 1 {
			return fmt.Errorf("usage: resources edit <id> [--title t] [--desc d] [--grade g] [--subject s] [--active true|false]")
		}
		res, err := a.findResource(ctx, c, positional[0])
		if err != nil {
			return err
		}

		ed := c.EditResource(res)
		var parseErr error
		if err := ed.Edit(func(f *admin.ResourceForm) {
			if v, ok := flags["title"]; ok {
				f.Title = v
			}
			if v, ok := flags["desc"]; ok {
				f.Description = v
			}
			if v, ok := flags["grade"]; ok {
				f.Grade = v
			}
			if v, ok := flags["subject"]; ok {
				f.Subject = v
			}
			if raw, ok := flags["active"]; ok {
				b, err := parseBool(raw)
				if err != nil {
					parseErr = err
					return
				}
				f.IsActive = b
			}
		}); err != nil {
			return err
		}
		if parseErr != nil {
			ed.Cancel()
			return parseErr
		}
		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		color.New(color.FgGreen).Printf("✓ 资源 %d 已更新\n", res.ID)
		return nil
	case "delete", "rm", "remove":
		if len(positional) != 1 {
			return fmt.Errorf("usage: resources delete <id> [--yes]")
		}
		res, err := a.findResource(ctx, c, positional[0])
		if err != nil {
			return err
		}

		var confirm prompt.Confirmer = a.term
		if flags["yes"] == "true" {
			confirm = prompt.Always
		}
		if err := c.DeleteResource(ctx, res, confirm); err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				color.Yellow("已取消\n")
				return nil
			}
			return errors.New(api.Message(err, "删除资源失败"))
		}
		color.New(color.FgGreen).Printf("✓ 资源 %q 已删除\n", res.Title)
		return nil
	default:
		return fmt.Errorf("unknown resources subcommand: %s (use list, edit, delete)", subcmd)
	}
}

func (a *app) findResource(ctx context.Context, c *admin.Console, raw string) (api.Resource, error) {
	id, err := parseID(raw)
	if err != nil {
		return api.Resource{}, err
	}
	res, err := findByID(ctx, c.Resources, func(r api.Resource) bool { return r.ID == id })
	if err != nil {
		return api.Resource{}, fmt.Errorf("resource %d: %w", id, err)
	}
	return res, nil
}

// cmdLogs lists admin audit records, newest first
func (a *app) cmdLogs(ctx context.Context, args []string) error {
	c, err := a.console(ctx)
	if err != nil {
		return err
	}
	flags, _ := parseArgs(args)
	delete(flags, "keyword")

	if err := loadPage(ctx, c.Logs, flags); err != nil {
		return listError(err, "获取操作日志失败")
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Admin log")
	cyan.Println("  ---------")
	if len(c.Logs.Items()) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}
	printLogs(c.Logs.Items())
	printFooter(c.Logs)
	return nil
}

func printLogs(logs []api.LogEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tADMIN\tACTION\tTARGET\tDESCRIPTION")
	for _, l := range logs {
		target := l.TargetType
		if l.TargetID != "" {
			target += "#" + string(l.TargetID)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			orDash(l.CreatedAt), l.AdminPhone, l.ActionType, target, truncate(l.ActionDescription, 40))
	}
	w.Flush()
}
