// ABOUTME: Interactive portal client for edushare: register, log in, search, upload and download
// ABOUTME: Runs a slash-command REPL, or a single command when one is given on the command line

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/config"
	"github.com/2389/edushare/internal/localstore"
	"github.com/2389/edushare/internal/logging"
	"github.com/2389/edushare/internal/portal"
	"github.com/2389/edushare/internal/prompt"
	"github.com/2389/edushare/internal/session"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	dir := flag.String("dir", ".", "Directory downloaded files are saved to")
	yes := flag.Bool("yes", false, "Skip download confirmations")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *dir, *yes, flag.Args()); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, yes bool, args []string) error {
	sh, err := newShell(dir, yes)
	if err != nil {
		return err
	}
	defer sh.Close()

	sh.session.Restore(ctx)

	// One-shot mode: edu-portal search 数学
	if len(args) > 0 {
		_, err := sh.exec(ctx, strings.Join(args, " "))
		return err
	}

	fmt.Printf("edu-portal connected to %s\n", sh.client.BaseURL())
	if u := sh.session.CurrentUser(); u != nil {
		fmt.Printf("Logged in as %s (%d points)\n", u.Nickname, u.Points)
	} else {
		fmt.Println("Not logged in. Use /login or /register.")
	}
	fmt.Println("Type /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := sh.repl(ctx); err != nil {
		return err
	}
	fmt.Println("\nGoodbye!")
	return nil
}

// shell holds the portal state for one process.
type shell struct {
	cfg     *config.Config
	logger  *slog.Logger
	kv      localstore.KV
	client  *api.Client
	session *session.Manager
	portal  *portal.Portal
	term    *prompt.Terminal

	dir     string
	confirm prompt.Confirmer
	form    portal.SearchForm
}

func newShell(dir string, yes bool) (*shell, error) {
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

	mgr := session.NewManager(client, kv, cfg.Session.PortalKey, session.AllowAll)
	term := prompt.Stdio()

	sh := &shell{
		cfg:     cfg,
		logger:  logger,
		kv:      kv,
		client:  client,
		session: mgr,
		portal:  portal.New(client, mgr),
		term:    term,
		dir:     dir,
		confirm: term,
		form:    portal.SearchForm{Page: 1, Size: cfg.Pagination.Size},
	}
	if yes {
		sh.confirm = prompt.Always
	}
	return sh, nil
}

func (s *shell) Close() {
	if err := s.kv.Close(); err != nil {
		s.logger.Warn("closing state store", "error", err)
	}
}

// repl reads commands until EOF, /quit or cancellation.
func (s *shell) repl(ctx context.Context) error {
	type line struct {
		text string
		err  error
	}

	for {
		prefix := "> "
		if u := s.session.CurrentUser(); u != nil {
			prefix = fmt.Sprintf("[%s %d分]> ", u.Nickname, u.Points)
		}

		inputCh := make(chan line, 1)
		go func() {
			text, err := s.term.Line(prefix)
			inputCh <- line{text, err}
		}()

		var in line
		select {
		case <-ctx.Done():
			return nil
		case in = <-inputCh:
		}
		if in.err == io.EOF {
			return nil
		}
		if in.err != nil {
			return fmt.Errorf("reading input: %w", in.err)
		}
		if in.text == "" {
			continue
		}

		quit, err := s.exec(ctx, in.text)
		if err != nil {
			color.Red("[error] %v\n", err)
		}
		if quit {
			return nil
		}
		fmt.Println()
	}
}

// exec runs one command line. The leading slash is optional.
func (s *shell) exec(ctx context.Context, input string) (quit bool, err error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "h", "?":
		printHelp()
	case "register":
		err = s.cmdRegister(ctx)
	case "login":
		err = s.cmdLogin(ctx, args)
	case "logout":
		s.session.Logout(ctx)
		fmt.Println("已退出登录")
	case "me":
		err = s.cmdMe(ctx)
	case "search", "s":
		err = s.cmdSearch(ctx, args)
	case "next":
		err = s.turnPage(ctx, 1)
	case "prev":
		err = s.turnPage(ctx, -1)
	case "upload":
		err = s.cmdUpload(ctx, args)
	case "download", "dl":
		err = s.cmdDownload(ctx, args)
	case "vocab":
		printVocabulary()
	default:
		err = fmt.Errorf("unknown command %q (try /help)", cmd)
	}
	return false, err
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /register                          Create an account")
	fmt.Println("  /login [phone]                     Log in")
	fmt.Println("  /logout                            Log out")
	fmt.Println("  /me                                Show your account and points")
	fmt.Println("  /search [keyword] [--grade g] [--subject s] [--type t]")
	fmt.Println("                                     Search resources (no arguments lists everything)")
	fmt.Println("  /next, /prev                       Move through search results")
	fmt.Println("  /upload <file> [--title t] [--grade a,b] [--subject s] [--type t] [--desc d]")
	fmt.Println("                                     Upload a resource (missing fields are asked for)")
	fmt.Println("  /download <id>                     Download a resource from the results")
	fmt.Println("  /vocab                             List grades, subjects and resource types")
	fmt.Println("  /help                              Show this help")
	fmt.Println("  /quit                              Exit")
}

func printVocabulary() {
	fmt.Println("Grades:         " + strings.Join(portal.Grades, " "))
	fmt.Println("Subjects:       " + strings.Join(portal.Subjects, " "))
	fmt.Println("Resource types: " + strings.Join(portal.ResourceTypes, " "))
}
