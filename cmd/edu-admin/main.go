// ABOUTME: Admin CLI for the edushare backend: configs, users, resources and audit logs
// ABOUTME: Persists the admin session token locally and renders lists with tabwriter

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/config"
	"github.com/2389/edushare/internal/localstore"
	"github.com/2389/edushare/internal/logging"
	"github.com/2389/edushare/internal/prompt"
	"github.com/2389/edushare/internal/session"
	"github.com/2389/edushare/internal/validate"
)

const banner = `
         _                _                               _           _
  ___ __| |_   _     ___| |__   __ _ _ __ ___       __ _| |_ __ ___ (_)_ __
 / _ \ _' | | | |___/ __| '_ \ / _' | '__/ _ \___ / _' | | '_ ' _ \| | '_ \
|  __/(_| | |_| |___\__ \ | | | (_| | | |  __/___| (_| | | | | | | | | | | |
 \___|\__,_|\__,_|   |___/_| |_|\__,_|_|  \___|    \__,_|_|_| |_| |_|_|_| |_|
`

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	}

	if err := run(cmd, args); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "me":
		return a.cmdMe(ctx)
	case "status":
		return a.cmdStatus(ctx)
	case "dashboard":
		return a.cmdDashboard(ctx)
	case "configs":
		return a.cmdConfigs(ctx)
	case "points":
		return a.cmdPoints(ctx, args)
	case "levels":
		return a.cmdLevels(ctx, args)
	case "settings":
		return a.cmdSettings(ctx, args)
	case "config":
		return a.cmdConfig(ctx, args)
	case "users":
		return a.cmdUsers(ctx, args)
	case "resources":
		return a.cmdResources(ctx, args)
	case "logs":
		return a.cmdLogs(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if prompt.IsTerminal(os.Stdout) {
		cyan.Print(banner)
		fmt.Println()
	}
	fmt.Println("Usage: edu-admin <command> [args]")
	fmt.Println()
	yellow.Println("Session:")
	fmt.Println("  login [phone]                        Log in with an admin account")
	fmt.Println("  logout                               Forget the stored admin token")
	fmt.Println("  me                                   Show the logged-in admin")
	fmt.Println("  status                               Show backend and session status")
	fmt.Println()
	yellow.Println("Configuration:")
	fmt.Println("  configs                              Show every configuration entry by bucket")
	fmt.Println("  points [edit]                        Show or edit the point rules")
	fmt.Println("  levels                               Show the user levels")
	fmt.Println("  levels set <name> <min> <max> <n>    Add or change a level (max -1 = unbounded)")
	fmt.Println("  levels remove <name>                 Remove a level")
	fmt.Println("  settings [edit]                      Show or edit the system settings")
	fmt.Println("  config show <key>                    Print one entry's document")
	fmt.Println("  config set <key> [json] [--desc d] [--file f]")
	fmt.Println("                                       Create or update an entry (--file - reads stdin)")
	fmt.Println()
	yellow.Println("Management:")
	fmt.Println("  dashboard                            Totals and recent admin actions")
	fmt.Println("  users [list] [--page n] [--keyword k]")
	fmt.Println("  users edit <id> [--points n] [--level l] [--active true|false]")
	fmt.Println("  resources [list] [--page n] [--keyword k]")
	fmt.Println("  resources edit <id> [--title t] [--desc d] [--grade g] [--subject s] [--active true|false]")
	fmt.Println("  resources delete <id> [--yes]")
	fmt.Println("  logs [--page n]")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  EDUSHARE_CONFIG          Config file (default: ~/.config/edushare/config.yaml)")
	fmt.Println("  EDUSHARE_API_URL         API base URL (default: " + config.DefaultBaseURL + ")")
	fmt.Println()
}

// app wires the shared client, token store and session for one invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	kv      *localstore.SQLiteStore
	client  *api.Client
	session *session.Manager
	term    *prompt.Terminal
}

func newApp() (*app, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	opts := []api.Option{api.WithLogger(logger)}
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	client, err := api.NewClient(cfg.API.BaseURL, opts...)
	if err != nil {
		return nil, err
	}

	kv, err := localstore.NewSQLiteStore(cfg.Session.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	authz := session.AdminAuthorizer{Role: cfg.Admin.Role, Check: session.ConfigsCheck(client)}
	return &app{
		cfg:     cfg,
		logger:  logger,
		kv:      kv,
		client:  client,
		session: session.NewManager(client, kv, cfg.Session.AdminKey, authz),
		term:    prompt.Stdio(),
	}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("closing state store", "error", err)
	}
}

// requireSession restores the stored token or fails with a login hint.
func (a *app) requireSession(ctx context.Context) error {
	if a.session.Restore(ctx) {
		return nil
	}
	return errors.New("not logged in (run: edu-admin login)")
}

// cmdLogin authenticates and keeps the token only for admin identities.
func (a *app) cmdLogin(ctx context.Context, args []string) error {
	var phone string
	if len(args) > 0 {
		phone = args[0]
	} else {
		phone = a.term.Ask("手机号", "")
	}
	password, err := a.term.Password("密码")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if _, err := a.session.Login(ctx, phone, password); err != nil {
		if errors.Is(err, session.ErrNotAuthorized) {
			return errors.New("该账号没有管理员权限")
		}
		var verrs validate.Errors
		if errors.As(err, &verrs) {
			return err
		}
		return errors.New(api.Message(err, "登录失败"))
	}

	u := a.session.CurrentUser()
	green := color.New(color.FgGreen)
	green.Printf("✓ 登录成功: %s (%s)\n", u.Nickname, u.Phone)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	a.session.Logout(ctx)
	color.New(color.FgGreen).Println("✓ 已退出登录")
	return nil
}

// cmdMe shows the logged-in admin
func (a *app) cmdMe(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	u := a.session.CurrentUser()

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  ID:             %d\n", u.ID)
	fmt.Printf("  Phone:          %s\n", u.Phone)
	fmt.Printf("  Nickname:       %s\n", u.Nickname)
	fmt.Printf("  Level:          %s\n", u.Level)
	fmt.Printf("  Points:         %d\n", u.Points)
	role := u.Role
	if role == "" && u.IsAdmin {
		role = a.cfg.Admin.Role
	}
	green.Printf("  Role:           %s\n", role)
	if exp, ok := a.session.Expiry(); ok {
		fmt.Printf("  Token expires:  %s (%s)\n", exp.Local().Format("2006-01-02 15:04"), formatRemaining(time.Until(exp)))
	}
	fmt.Println()
	return nil
}

// cmdStatus shows the backend address and whether the stored session is valid
func (a *app) cmdStatus(ctx context.Context) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	green.Printf("  Backend:  ")
	fmt.Println(a.client.BaseURL())

	if a.session.Restore(ctx) {
		u := a.session.CurrentUser()
		green.Printf("  Identity: ")
		fmt.Printf("%s (%s)\n", u.Nickname, u.Phone)
	} else {
		yellow.Printf("  Identity: ")
		fmt.Println("(not logged in - run edu-admin login)")
	}
	fmt.Println()
	return nil
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return "in " + d.Round(time.Minute).String()
}

// parseArgs splits --name value pairs from positional arguments. Flags named
// in bools take no value.
func parseArgs(args []string, bools ...string) (map[string]string, []string) {
	flags := map[string]string{}
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if name, value, ok := strings.Cut(name, "="); ok {
			flags[name] = value
			continue
		}
		if slices.Contains(bools, name) || i+1 >= len(args) {
			flags[name] = "true"
			continue
		}
		flags[name] = args[i+1]
		i++
	}
	return flags, positional
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1", "是":
		return true, nil
	case "false", "no", "n", "0", "否":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
