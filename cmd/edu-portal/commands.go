// ABOUTME: Portal REPL commands wired to the session manager and the portal workflow
// ABOUTME: Validation errors print as-is; server errors print their detail or a generic message

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/portal"
	"github.com/2389/edushare/internal/session"
	"github.com/2389/edushare/internal/validate"
)

var errLoginRequired = errors.New("请先登录 (/login)")

// userError keeps local validation failures and maps everything else to a message.
func userError(err error, fallback string) error {
	var verrs validate.Errors
	if errors.As(err, &verrs) || errors.Is(err, portal.ErrMissingFile) {
		return err
	}
	return errors.New(api.Message(err, fallback))
}

func (s *shell) cmdRegister(ctx context.Context) error {
	var form portal.RegisterForm
	form.Phone = s.term.Ask("手机号", "")
	pw, err := s.term.Password("密码 (6-20位)")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	form.Password = pw
	if form.ConfirmPassword, err = s.term.Password("确认密码"); err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	form.Nickname = s.term.Ask("昵称", "")
	fmt.Println("年级: " + strings.Join(portal.Grades, " "))
	form.ChildGrade = s.term.Ask("孩子年级", "")

	u, err := s.portal.Register(ctx, form)
	if err != nil {
		return userError(err, "注册失败")
	}
	color.Green("注册成功: %s，请使用 /login 登录\n", u.Nickname)
	return nil
}

func (s *shell) cmdLogin(ctx context.Context, args []string) error {
	var phone string
	if len(args) > 0 {
		phone = args[0]
	} else {
		phone = s.term.Ask("手机号", "")
	}
	password, err := s.term.Password("密码")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	res, err := s.session.Login(ctx, phone, password)
	if err != nil {
		if errors.Is(err, session.ErrIdentityMismatch) {
			return err
		}
		return userError(err, "登录失败")
	}

	u := s.session.CurrentUser()
	color.Green("登录成功，欢迎 %s\n", u.Nickname)
	if res.GradeUpgraded && res.NewGrade != "" {
		color.Yellow("孩子年级已自动升级为 %s\n", res.NewGrade)
	}
	return nil
}

func (s *shell) cmdMe(ctx context.Context) error {
	if !s.session.LoggedIn() {
		return errLoginRequired
	}
	u, err := s.session.Refresh(ctx)
	if err != nil {
		return userError(err, "获取用户信息失败")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Phone:\t%s\n", u.Phone)
	fmt.Fprintf(w, "  Nickname:\t%s\n", u.Nickname)
	if u.ChildGrade != nil {
		fmt.Fprintf(w, "  Child grade:\t%s\n", *u.ChildGrade)
	}
	fmt.Fprintf(w, "  Level:\t%s\n", u.Level)
	fmt.Fprintf(w, "  Points:\t%d\n", u.Points)
	fmt.Fprintf(w, "  Downloads today:\t%d\n", u.DailyDownloads)
	return w.Flush()
}

func (s *shell) cmdSearch(ctx context.Context, args []string) error {
	flags, positional := parseArgs(args)
	s.form = portal.SearchForm{
		Keyword:      strings.Join(positional, " "),
		Grade:        flags["grade"],
		Subject:      flags["subject"],
		ResourceType: flags["type"],
		Page:         1,
		Size:         s.cfg.Pagination.Size,
	}
	return s.search(ctx)
}

func (s *shell) turnPage(ctx context.Context, delta int) error {
	cur := s.portal.Results()
	next := s.form.Page + delta
	if next < 1 {
		return errors.New("已经是第一页")
	}
	if delta > 0 && cur.Pages > 0 && next > cur.Pages {
		return errors.New("已经是最后一页")
	}
	s.form.Page = next
	return s.search(ctx)
}

func (s *shell) search(ctx context.Context) error {
	page, err := s.portal.Search(ctx, s.form)
	if err != nil {
		return userError(err, "搜索资源失败")
	}
	printResults(page)
	return nil
}

func printResults(page *api.ResourcePage) {
	if len(page.Items) == 0 {
		fmt.Println("没有找到资源")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tGRADE\tSUBJECT\tTYPE\tSIZE\tDOWNLOADS")
	for _, r := range page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, truncate(r.Title, 28), truncate(r.Grade, 16), r.Subject, r.ResourceType,
			humanize.Bytes(uint64(max(r.FileSize, 0))), r.DownloadCount)
	}
	w.Flush()
	fmt.Printf("第 %d/%d 页，共 %d 条\n", page.Page, max(page.Pages, 1), page.Total)
}

func (s *shell) cmdUpload(ctx context.Context, args []string) error {
	if !s.session.LoggedIn() {
		return errLoginRequired
	}
	flags, positional := parseArgs(args)
	if len(positional) != 1 {
		return errors.New("usage: /upload <file> [--title t] [--grade a,b] [--subject s] [--type t] [--desc d]")
	}
	path := positional[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	form := portal.UploadForm{
		Title:        flagOrAsk(s, flags, "title", "标题", strings.TrimSuffix(name, filepath.Ext(name))),
		Grades:       splitGrades(flagOrAsk(s, flags, "grade", "适用年级 (逗号分隔)", "")),
		Subject:      flagOrAsk(s, flags, "subject", "学科", ""),
		ResourceType: flagOrAsk(s, flags, "type", "资源类型", ""),
		Description:  flags["desc"],
		FileName:     name,
		File:         f,
	}

	res, err := s.portal.Upload(ctx, form)
	if err != nil {
		return userError(err, "上传失败")
	}
	color.Green("上传成功: %s (#%d)\n", res.Title, res.ID)
	if u := s.session.CurrentUser(); u != nil {
		fmt.Printf("当前积分: %d\n", u.Points)
	}
	return nil
}

func flagOrAsk(s *shell, flags map[string]string, name, label, def string) string {
	if v, ok := flags[name]; ok {
		return v
	}
	return s.term.Ask(label, def)
}

func splitGrades(s string) []string {
	var out []string
	for _, g := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' || r == ' ' }) {
		if !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	return out
}

func (s *shell) cmdDownload(ctx context.Context, args []string) error {
	if !s.session.LoggedIn() {
		return errLoginRequired
	}
	if len(args) != 1 {
		return errors.New("usage: /download <id>")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	var res *api.Resource
	for _, r := range s.portal.Results().Items {
		if r.ID == id {
			res = &r
			break
		}
	}
	if res == nil {
		return fmt.Errorf("resource %d is not in the current results (run /search first)", id)
	}

	result, err := s.portal.Download(ctx, *res, s.confirm)
	if err != nil {
		if errors.Is(err, portal.ErrCancelled) {
			fmt.Println("已取消")
			return nil
		}
		return userError(err, "下载失败")
	}

	path, n, err := s.portal.SaveTo(ctx, *res, result.DownloadURL, s.dir)
	if err != nil {
		if api.StatusOf(err) == 0 {
			return fmt.Errorf("保存文件失败: %w", err)
		}
		return userError(err, "保存文件失败")
	}
	color.Green("已保存到 %s (%s)\n", path, humanize.Bytes(uint64(n)))
	if u := s.session.CurrentUser(); u != nil {
		fmt.Printf("剩余积分: %d\n", u.Points)
	}
	return nil
}

// parseArgs splits --name value pairs from positional arguments.
func parseArgs(args []string) (map[string]string, []string) {
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
		if i+1 >= len(args) {
			flags[name] = ""
			continue
		}
		flags[name] = args[i+1]
		i++
	}
	return flags, positional
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-1]) + "…"
}
