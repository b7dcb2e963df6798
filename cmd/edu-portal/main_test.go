// ABOUTME: Tests for the portal shell running commands against the fake backend
// ABOUTME: Input is scripted through an in-memory terminal

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/apitest"
	"github.com/2389/edushare/internal/config"
	"github.com/2389/edushare/internal/localstore"
	"github.com/2389/edushare/internal/portal"
	"github.com/2389/edushare/internal/prompt"
	"github.com/2389/edushare/internal/session"
)

func newTestShell(t *testing.T, input string) (*shell, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	client, err := api.NewClient(srv.BaseURL())
	require.NoError(t, err)

	cfg := config.Default()
	mgr := session.NewManager(client, localstore.NewMemoryStore(), cfg.Session.PortalKey, session.AllowAll)
	term := prompt.NewTerminal(strings.NewReader(input), io.Discard)

	return &shell{
		cfg:     cfg,
		logger:  slog.Default(),
		kv:      localstore.NewMemoryStore(),
		client:  client,
		session: mgr,
		portal:  portal.New(client, mgr),
		term:    term,
		dir:     t.TempDir(),
		confirm: term,
		form:    portal.SearchForm{Page: 1, Size: cfg.Pagination.Size},
	}, srv
}

func seedResource(srv *apitest.Server) int64 {
	return srv.AddResource(api.Resource{
		UploaderID:   999,
		Title:        "数学期中试卷",
		Grade:        "小学3年级",
		Subject:      "数学",
		ResourceType: "试卷",
		IsActive:     true,
	}, []byte("pdf-bytes"))
}

func TestShell_LoginSearchDownload(t *testing.T) {
	sh, srv := newTestShell(t, "secret1\ny\n")
	uid := srv.AddUser(api.User{Phone: "13800000001", Nickname: "小明", Points: 50}, "secret1")
	rid := seedResource(srv)
	ctx := context.Background()

	_, err := sh.exec(ctx, "/login 13800000001")
	require.NoError(t, err)
	require.True(t, sh.session.LoggedIn())

	_, err = sh.exec(ctx, "/search 数学 --subject 数学")
	require.NoError(t, err)
	require.Len(t, sh.portal.Results().Items, 1)

	_, err = sh.exec(ctx, fmt.Sprintf("/download %d", rid))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(sh.dir, fmt.Sprintf("res-%d.pdf", rid)))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	u, _ := srv.User(uid)
	assert.Equal(t, 50-apitest.DownloadCost, u.Points)
	assert.Equal(t, u.Points, sh.session.CurrentUser().Points)
}

func TestShell_DownloadRefusedMakesNoCall(t *testing.T) {
	sh, srv := newTestShell(t, "secret1\nn\n")
	srv.AddUser(api.User{Phone: "13800000001", Nickname: "小明", Points: 50}, "secret1")
	rid := seedResource(srv)
	ctx := context.Background()

	_, err := sh.exec(ctx, "login 13800000001")
	require.NoError(t, err)
	_, err = sh.exec(ctx, "search")
	require.NoError(t, err)

	_, err = sh.exec(ctx, fmt.Sprintf("download #%d", rid))
	require.NoError(t, err)
	assert.Zero(t, srv.CountPrefix("POST", "/api/v1/downloads/"))
}

func TestShell_DownloadOutsideResults(t *testing.T) {
	sh, srv := newTestShell(t, "secret1\n")
	srv.AddUser(api.User{Phone: "13800000001", Nickname: "小明", Points: 50}, "secret1")
	ctx := context.Background()

	_, err := sh.exec(ctx, "/login 13800000001")
	require.NoError(t, err)

	_, err = sh.exec(ctx, "/download 12345")
	assert.ErrorContains(t, err, "not in the current results")
}

func TestShell_RequiresLogin(t *testing.T) {
	sh, srv := newTestShell(t, "")

	_, err := sh.exec(context.Background(), "/upload notes.pdf")
	assert.ErrorIs(t, err, errLoginRequired)
	_, err = sh.exec(context.Background(), "/download 1")
	assert.ErrorIs(t, err, errLoginRequired)
	assert.Empty(t, srv.Calls())
}

func TestShell_WrongPasswordShowsDetail(t *testing.T) {
	sh, srv := newTestShell(t, "nope\n")
	srv.AddUser(api.User{Phone: "13800000001", Nickname: "小明"}, "secret1")

	_, err := sh.exec(context.Background(), "/login 13800000001")
	assert.EqualError(t, err, "手机号或密码错误")
	assert.False(t, sh.session.LoggedIn())
}

func TestShell_Upload(t *testing.T) {
	sh, srv := newTestShell(t, "secret1\n")
	uid := srv.AddUser(api.User{Phone: "13800000001", Nickname: "小明", Points: 10}, "secret1")
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "期末复习.pdf")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	_, err := sh.exec(ctx, "/login 13800000001")
	require.NoError(t, err)

	_, err = sh.exec(ctx, "/upload "+path+" --grade 小学3年级,小学4年级 --subject 数学 --type 试卷 --title 期末复习")
	require.NoError(t, err)

	u, _ := srv.User(uid)
	assert.Equal(t, 10+apitest.UploadPoints, u.Points)
	assert.Equal(t, u.Points, sh.session.CurrentUser().Points)
}

func TestShell_UploadValidatesLocally(t *testing.T) {
	sh, srv := newTestShell(t, "secret1\n")
	srv.AddUser(api.User{Phone: "13800000001", Nickname: "小明"}, "secret1")
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := sh.exec(ctx, "/login 13800000001")
	require.NoError(t, err)
	srv.ResetCalls()

	_, err = sh.exec(ctx, "/upload "+path+" --grade 大学 --subject 数学 --type 试卷 --title x")
	assert.ErrorContains(t, err, "grade[0]")
	assert.Empty(t, srv.Calls())
}

func TestShell_PagingBounds(t *testing.T) {
	sh, srv := newTestShell(t, "")
	seedResource(srv)
	ctx := context.Background()

	_, err := sh.exec(ctx, "/search")
	require.NoError(t, err)
	assert.EqualError(t, sh.turnPage(ctx, -1), "已经是第一页")
	assert.EqualError(t, sh.turnPage(ctx, 1), "已经是最后一页")
}

func TestShell_QuitAndUnknown(t *testing.T) {
	sh, _ := newTestShell(t, "")

	quit, err := sh.exec(context.Background(), "/quit")
	assert.True(t, quit)
	assert.NoError(t, err)

	quit, err = sh.exec(context.Background(), "/frobnicate")
	assert.False(t, quit)
	assert.ErrorContains(t, err, "unknown command")
}

func TestSplitGrades(t *testing.T) {
	assert.Equal(t, []string{"小学3年级", "小学4年级"}, splitGrades("小学3年级，小学4年级, 小学3年级"))
	assert.Empty(t, splitGrades(""))
}
