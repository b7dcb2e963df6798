// ABOUTME: Configuration subcommands: bucket overview, typed editors and the generic JSON editor
// ABOUTME: Every save goes through the editor dialogs so the config cache reloads afterwards

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/edushare/internal/configstore"
	"github.com/2389/edushare/internal/editor"
)

// loadStore requires a session and loads every configuration entry.
func (a *app) loadStore(ctx context.Context) (*configstore.Store, error) {
	if err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	store := configstore.NewStore(a.client)
	if err := store.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("loading configs: %w", err)
	}
	return store, nil
}

// saveError turns a failed save into the dialog's user-facing message.
func saveError(err error, message string) error {
	if message == "" {
		return err
	}
	return errors.New(message)
}

// cmdConfigs shows each bucket and the remaining entries
func (a *app) cmdConfigs(ctx context.Context) error {
	store, err := a.loadStore(ctx)
	if err != nil {
		return err
	}
	cls := store.Classification()

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Println("  Buckets")
	cyan.Println("  -------")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  BUCKET\tKEY\tDESCRIPTION\tUPDATED")
	for _, b := range []configstore.Bucket{
		configstore.BucketPointRules,
		configstore.BucketUserLevels,
		configstore.BucketSystemSettings,
	} {
		e := cls.Entry(b)
		if e == nil {
			fmt.Fprintf(w, "  %s\t-\t(not set, defaults apply)\t-\n", b)
			continue
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", b, e.Key, e.Description, orDash(e.UpdatedAt))
	}
	w.Flush()

	fmt.Println()
	cyan.Println("  Other entries")
	cyan.Println("  -------------")
	if len(cls.Other) == 0 {
		yellow.Println("  (none)")
		fmt.Println()
		return nil
	}
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tKEY\tDESCRIPTION\tACTIVE\tUPDATED")
	for _, e := range cls.Other {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", e.ID, e.Key, truncate(e.Description, 30), yesNo(e.IsActive), orDash(e.UpdatedAt))
	}
	w.Flush()
	fmt.Println()
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var pointFields = []struct {
	key   string
	label string
	field func(*configstore.PointRules) *int
}{
	{"register_points", "注册奖励积分", func(p *configstore.PointRules) *int { return &p.RegisterPoints }},
	{"upload_points", "上传奖励积分", func(p *configstore.PointRules) *int { return &p.UploadPoints }},
	{"download_cost", "下载消耗积分", func(p *configstore.PointRules) *int { return &p.DownloadCost }},
	{"daily_signin_points", "每日签到积分", func(p *configstore.PointRules) *int { return &p.DailySigninPoints }},
	{"daily_download_limit", "每日下载上限", func(p *configstore.PointRules) *int { return &p.DailyDownloadLimit }},
}

// cmdPoints shows or edits the point rules
func (a *app) cmdPoints(ctx context.Context, args []string) error {
	store, err := a.loadStore(ctx)
	if err != nil {
		return err
	}

	subcmd := "show"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "show":
		doc, fromServer := store.PointRules()
		printSource("Point rules", fromServer)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, f := range pointFields {
			fmt.Fprintf(w, "  %s\t%s\t%d\n", f.key, f.label, *f.field(&doc))
		}
		w.Flush()
		fmt.Println()
		return nil
	case "edit":
		flags, _ := parseArgs(args)
		if err := checkPointFlags(flags); err != nil {
			return err
		}
		ed := editor.NewPointRulesEditor(store, a.client)
		if err := ed.Open(); err != nil {
			return err
		}

		doc := ed.Document()
		for _, f := range pointFields {
			ptr := f.field(&doc)
			raw, ok := flags[f.key]
			if !ok && len(flags) > 0 {
				continue
			}
			if !ok {
				raw = a.term.Ask(f.label, strconv.Itoa(*ptr))
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				ed.Cancel()
				return fmt.Errorf("%s: %q is not a number", f.key, raw)
			}
			*ptr = n
		}
		if err := ed.Edit(func(d *configstore.PointRules) { *d = doc }); err != nil {
			return err
		}

		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		color.New(color.FgGreen).Println("✓ 积分规则配置已保存")
		return nil
	default:
		return fmt.Errorf("unknown points subcommand: %s (use show, edit)", subcmd)
	}
}

// checkPointFlags rejects flags that name no point rule.
func checkPointFlags(flags map[string]string) error {
	keys := make([]string, 0, len(pointFields))
	for _, f := range pointFields {
		keys = append(keys, f.key)
	}
	for name := range flags {
		if !slices.Contains(keys, name) {
			return fmt.Errorf("unknown flag --%s (use %s)", name, "--"+strings.Join(keys, ", --"))
		}
	}
	return nil
}

func printSource(title string, fromServer bool) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  %s", title)
	if !fromServer {
		color.New(color.FgYellow).Print(" (defaults, not saved on server)")
	}
	fmt.Println()
	cyan.Println("  " + strings.Repeat("-", len(title)))
}

// cmdLevels shows or edits the user level table
func (a *app) cmdLevels(ctx context.Context, args []string) error {
	store, err := a.loadStore(ctx)
	if err != nil {
		return err
	}

	subcmd := "show"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "show", "list", "ls":
		doc, fromServer := store.UserLevels()
		printSource("User levels", fromServer)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tMIN\tMAX\tDAILY DOWNLOADS")
		for _, r := range editor.ToRows(doc) {
			fmt.Fprintf(w, "  %s\t%d\t%s\t%d\n", r.Name, r.MinPoints, formatMax(r.MaxPoints), r.DailyDownloads)
		}
		w.Flush()
		fmt.Println()
		return nil
	case "set":
		if len(args) != 4 {
			return fmt.Errorf("usage: levels set <name> <min> <max> <daily-downloads>")
		}
		row := editor.LevelRow{Name: args[0]}
		for i, dst := range []*int{&row.MinPoints, &row.MaxPoints, &row.DailyDownloads} {
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("%q is not a number", args[i+1])
			}
			*dst = n
		}

		ed := editor.NewUserLevelsEditor(store, a.client)
		if err := ed.Open(); err != nil {
			return err
		}
		idx := findRow(ed.Rows(), row.Name)
		if idx < 0 {
			if err := ed.AddRow(); err != nil {
				return err
			}
			idx = len(ed.Rows()) - 1
		}
		if err := ed.SetRow(idx, row); err != nil {
			return err
		}
		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		color.New(color.FgGreen).Printf("✓ 等级 %s 已保存\n", row.Name)
		return nil
	case "remove", "rm", "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: levels remove <name>")
		}
		ed := editor.NewUserLevelsEditor(store, a.client)
		if err := ed.Open(); err != nil {
			return err
		}
		idx := findRow(ed.Rows(), args[0])
		if idx < 0 {
			ed.Cancel()
			return fmt.Errorf("no level named %q", args[0])
		}
		if err := ed.RemoveRow(idx); err != nil {
			return err
		}
		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		color.New(color.FgGreen).Printf("✓ 等级 %s 已删除\n", args[0])
		return nil
	default:
		return fmt.Errorf("unknown levels subcommand: %s (use show, set, remove)", subcmd)
	}
}

func findRow(rows []editor.LevelRow, name string) int {
	for i, r := range rows {
		if r.Name == name {
			return i
		}
	}
	return -1
}

func formatMax(n int) string {
	if n == configstore.Unbounded {
		return "∞"
	}
	return strconv.Itoa(n)
}

// cmdSettings shows or edits the system settings
func (a *app) cmdSettings(ctx context.Context, args []string) error {
	store, err := a.loadStore(ctx)
	if err != nil {
		return err
	}

	subcmd := "show"
	if len(args) > 0 {
		subcmd = args[0]
	}

	switch subcmd {
	case "show":
		doc, fromServer := store.SystemSettings()
		printSource("System settings", fromServer)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  max_file_size\t%d bytes (%.1f MB)\n", doc.MaxFileSize, float64(doc.MaxFileSize)/(1<<20))
		fmt.Fprintf(w, "  allowed_file_types\t%s\n", strings.Join(doc.AllowedFileTypes, ", "))
		fmt.Fprintf(w, "  auto_approve_resources\t%s\n", yesNo(doc.AutoApproveResources))
		fmt.Fprintf(w, "  maintenance_mode\t%s\n", yesNo(doc.MaintenanceMode))
		w.Flush()
		fmt.Println()
		return nil
	case "edit":
		ed := editor.NewSystemSettingsEditor(store, a.client)
		if err := ed.Open(); err != nil {
			return err
		}
		cur := ed.Document()

		size, err := strconv.ParseInt(a.term.Ask("最大文件大小 (bytes)", strconv.FormatInt(cur.MaxFileSize, 10)), 10, 64)
		if err != nil {
			ed.Cancel()
			return fmt.Errorf("max_file_size must be a number")
		}
		types := splitList(a.term.Ask("允许的文件类型 (逗号分隔)", strings.Join(cur.AllowedFileTypes, ",")))
		approve, err := parseBool(a.term.Ask("自动审核资源", yesNo(cur.AutoApproveResources)))
		if err != nil {
			ed.Cancel()
			return err
		}
		maintenance, err := parseBool(a.term.Ask("维护模式", yesNo(cur.MaintenanceMode)))
		if err != nil {
			ed.Cancel()
			return err
		}

		if err := ed.Edit(func(doc *configstore.SystemSettings) {
			doc.MaxFileSize = size
			doc.AllowedFileTypes = types
			doc.AutoApproveResources = approve
			doc.MaintenanceMode = maintenance
		}); err != nil {
			return err
		}
		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		color.New(color.FgGreen).Println("✓ 系统设置已保存")
		return nil
	default:
		return fmt.Errorf("unknown settings subcommand: %s (use show, edit)", subcmd)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cmdConfig edits arbitrary entries as JSON documents
func (a *app) cmdConfig(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: config show|set|delete <key> ...")
	}
	subcmd, key := args[0], args[1]
	flags, positional := parseArgs(args[2:])

	store, err := a.loadStore(ctx)
	if err != nil {
		return err
	}
	entry, exists := store.LookupKey(key)
	ed := editor.NewGenericEditor(store, a.client)

	switch subcmd {
	case "show", "get":
		if !exists {
			return fmt.Errorf("no config entry %q", key)
		}
		if err := ed.Open(entry); err != nil {
			return err
		}
		defer ed.Cancel()
		fmt.Printf("# %s (%s)\n", entry.Key, entry.Description)
		fmt.Println(ed.Text())
		return nil
	case "set":
		text, err := documentText(flags, positional)
		if err != nil {
			return err
		}
		if exists {
			err = ed.Open(entry)
		} else if err = ed.OpenNew(); err == nil {
			err = ed.SetKey(key)
		}
		if err != nil {
			return err
		}
		if desc, ok := flags["desc"]; ok {
			if err := ed.SetDescription(desc); err != nil {
				return err
			}
		}
		if err := ed.SetText(text); err != nil {
			return err
		}
		if err := ed.Save(ctx); err != nil {
			return saveError(err, ed.Message())
		}
		if exists {
			color.New(color.FgGreen).Printf("✓ 配置 %s 已更新\n", key)
		} else {
			color.New(color.FgGreen).Printf("✓ 配置 %s 已创建\n", key)
		}
		return nil
	case "delete", "rm":
		return ed.Delete(entry)
	default:
		return fmt.Errorf("unknown config subcommand: %s (use show, set, delete)", subcmd)
	}
}

// documentText reads the JSON document from --file (- for stdin) or the first positional argument.
func documentText(flags map[string]string, positional []string) (string, error) {
	if path, ok := flags["file"]; ok {
		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return "", fmt.Errorf("opening document: %w", err)
			}
			defer f.Close()
			r = f
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("reading document: %w", err)
		}
		return string(data), nil
	}
	if len(positional) == 0 {
		return "", fmt.Errorf("usage: config set <key> <json> [--desc text] | --file <path>")
	}
	return strings.Join(positional, " "), nil
}
