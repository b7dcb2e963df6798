// ABOUTME: Tests for portal workflows against the fake backend
// ABOUTME: Covers local validation, upload refresh, download confirmation and file saving

package portal

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/apitest"
	"github.com/2389/edushare/internal/busy"
	"github.com/2389/edushare/internal/localstore"
	"github.com/2389/edushare/internal/prompt"
	"github.com/2389/edushare/internal/session"
	"github.com/2389/edushare/internal/validate"
)

type fixture struct {
	srv     *apitest.Server
	client  *api.Client
	session *session.Manager
	portal  *Portal
}

func newFixture(t *testing.T, points int) *fixture {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser(api.User{Phone: "13800000001", Nickname: "家长", Points: points}, "pw1234")
	client, err := api.NewClient(srv.BaseURL())
	require.NoError(t, err)

	sess := session.NewManager(client, localstore.NewMemoryStore(), "token", session.AllowAll)
	_, err = sess.Login(context.Background(), "13800000001", "pw1234")
	require.NoError(t, err)

	return &fixture{srv: srv, client: client, session: sess, portal: New(client, sess)}
}

func validUpload() UploadForm {
	return UploadForm{
		Title:        "三年级数学期末卷",
		Grades:       []string{"小学3年级", "小学4年级"},
		Subject:      "数学",
		ResourceType: "试卷",
		FileName:     "final.pdf",
		File:         strings.NewReader("%PDF-1.4"),
	}
}

func TestSearch_Filters(t *testing.T) {
	f := newFixture(t, 100)
	f.srv.AddResource(api.Resource{Title: "语文课件", Grade: "小学1年级", Subject: "语文", ResourceType: "课件", IsActive: true}, nil)
	f.srv.AddResource(api.Resource{Title: "数学试卷", Grade: "小学3年级,小学4年级", Subject: "数学", ResourceType: "试卷", IsActive: true}, nil)
	f.srv.AddResource(api.Resource{Title: "下架资源", Subject: "数学", IsActive: false}, nil)

	page, err := f.portal.Search(context.Background(), SearchForm{Subject: "数学"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "数学试卷", page.Items[0].Title)
	assert.Equal(t, 1, page.Total)

	page, err = f.portal.Search(context.Background(), SearchForm{Grade: "小学4年级"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = f.portal.Search(context.Background(), SearchForm{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Len(t, f.portal.Results().Items, 2)
}

func TestSearch_UnknownVocabularyIsLocal(t *testing.T) {
	f := newFixture(t, 100)
	f.srv.ResetCalls()

	_, err := f.portal.Search(context.Background(), SearchForm{Subject: "音乐"})
	var verrs validate.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "subject")
	assert.Empty(t, f.srv.Calls())
}

func TestSearch_FailureClearsResults(t *testing.T) {
	f := newFixture(t, 100)
	f.srv.AddResource(api.Resource{Title: "a", IsActive: true}, nil)
	ctx := context.Background()
	_, err := f.portal.Search(ctx, SearchForm{})
	require.NoError(t, err)

	f.srv.Fail(http.MethodGet, "/api/v1/resources/", http.StatusInternalServerError, "", 1)
	_, err = f.portal.Search(ctx, SearchForm{})
	require.Error(t, err)
	assert.Empty(t, f.portal.Results().Items)
}

func TestUpload_RefreshesUserAndResults(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	_, err := f.portal.Search(ctx, SearchForm{Subject: "数学"})
	require.NoError(t, err)
	f.srv.ResetCalls()

	form := validUpload()
	form.Description = "  含答案  "
	res, err := f.portal.Upload(ctx, form)
	require.NoError(t, err)

	stored, ok := f.srv.Resource(res.ID)
	require.True(t, ok)
	assert.Equal(t, "小学3年级,小学4年级", stored.Grade)
	assert.Equal(t, "含答案", stored.Description)
	assert.Equal(t, "final.pdf", stored.FileName)

	assert.Equal(t, 100+apitest.UploadPoints, f.session.CurrentUser().Points)
	assert.Len(t, f.srv.CallsTo(http.MethodGet, "/api/v1/auth/me"), 1)

	searches := f.srv.CallsTo(http.MethodGet, "/api/v1/resources/")
	require.Len(t, searches, 1)
	assert.Contains(t, searches[0].Query, "subject=")
	assert.Len(t, f.portal.Results().Items, 1)
}

func TestUpload_LocalValidation(t *testing.T) {
	f := newFixture(t, 100)
	f.srv.ResetCalls()
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(*UploadForm)
		field string
	}{
		{"blank title", func(u *UploadForm) { u.Title = "  " }, "title"},
		{"no grade", func(u *UploadForm) { u.Grades = nil }, "grade"},
		{"unknown grade", func(u *UploadForm) { u.Grades = []string{"大学1年级"} }, "grade[0]"},
		{"no subject", func(u *UploadForm) { u.Subject = "" }, "subject"},
		{"unknown type", func(u *UploadForm) { u.ResourceType = "视频" }, "resource_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validUpload()
			tt.edit(&form)
			_, err := f.portal.Upload(ctx, form)
			var verrs validate.Errors
			require.True(t, errors.As(err, &verrs))
			assert.Contains(t, verrs, tt.field)
		})
	}

	form := validUpload()
	form.File = nil
	_, err := f.portal.Upload(ctx, form)
	assert.ErrorIs(t, err, ErrMissingFile)

	assert.Empty(t, f.srv.Calls())
}

func TestUpload_ServerErrorDetail(t *testing.T) {
	f := newFixture(t, 100)
	f.srv.Fail(http.MethodPost, "/api/v1/resources/", http.StatusBadRequest, "不支持的文件类型", 1)

	_, err := f.portal.Upload(context.Background(), validUpload())
	require.Error(t, err)
	assert.Equal(t, "不支持的文件类型", api.Message(err, "上传失败"))
}

func TestDownload_RefusedMakesNoCall(t *testing.T) {
	f := newFixture(t, 100)
	rid := f.srv.AddResource(api.Resource{Title: "期末卷", IsActive: true, UploaderID: 1}, []byte("x"))
	res, _ := f.srv.Resource(rid)
	f.srv.ResetCalls()

	var asked string
	_, err := f.portal.Download(context.Background(), res, prompt.ConfirmFunc(func(_ context.Context, msg string) (bool, error) {
		asked = msg
		return false, nil
	}))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, "下载 \"期末卷\" 需要消耗10积分，是否继续？", asked)
	assert.Empty(t, f.srv.Calls())
}

func TestDownload_SpendsAndSaves(t *testing.T) {
	f := newFixture(t, 100)
	rid := f.srv.AddResource(api.Resource{Title: "期末卷", FileName: "final.pdf", IsActive: true, UploaderID: 1}, []byte("%PDF content"))
	res, _ := f.srv.Resource(rid)
	ctx := context.Background()

	result, err := f.portal.Download(ctx, res, prompt.Always)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/resources/final.pdf", result.DownloadURL)
	assert.Equal(t, 100-apitest.DownloadCost, f.session.CurrentUser().Points)

	dir := t.TempDir()
	path, n, err := f.portal.SaveTo(ctx, res, result.DownloadURL, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final.pdf"), path)
	assert.Equal(t, int64(len("%PDF content")), n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF content", string(data))
}

func TestDownload_InsufficientPoints(t *testing.T) {
	f := newFixture(t, 2)
	rid := f.srv.AddResource(api.Resource{Title: "期末卷", IsActive: true, UploaderID: 1}, []byte("x"))
	res, _ := f.srv.Resource(rid)

	_, err := f.portal.Download(context.Background(), res, prompt.Always)
	require.Error(t, err)
	assert.Equal(t, "积分不足，无法下载", api.Message(err, "下载失败"))
	assert.Equal(t, 2, f.session.CurrentUser().Points)
}

func TestSaveTo_RemovesPartialFile(t *testing.T) {
	f := newFixture(t, 100)
	dir := t.TempDir()

	_, _, err := f.portal.SaveTo(context.Background(), api.Resource{ID: 9, FileName: "../../etc/missing.pdf"}, "/uploads/resources/missing.pdf", dir)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithDownloadCost(t *testing.T) {
	p := New(nil, nil, WithDownloadCost(5))
	assert.Equal(t, "下载 \"x\" 需要消耗5积分，是否继续？", p.DownloadPrompt(api.Resource{Title: "x"}))
}

// blockingBackend holds Download until release is closed.
type blockingBackend struct {
	Backend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Download(context.Context, int64) (*api.DownloadResult, error) {
	close(b.entered)
	<-b.release
	return &api.DownloadResult{DownloadURL: "/x"}, nil
}

func TestDownload_SecondIsBusy(t *testing.T) {
	b := &blockingBackend{entered: make(chan struct{}), release: make(chan struct{})}
	p := New(b, nil)

	done := make(chan error, 1)
	go func() {
		_, err := p.Download(context.Background(), api.Resource{ID: 1}, prompt.Always)
		done <- err
	}()
	<-b.entered

	_, err := p.Download(context.Background(), api.Resource{ID: 1}, prompt.Always)
	assert.ErrorIs(t, err, busy.ErrBusy)

	close(b.release)
	require.NoError(t, <-done)
}

func TestRegister(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	form := RegisterForm{
		Phone:           "13900000002",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Nickname:        "小明妈妈",
		ChildGrade:      "初中1年级",
	}
	u, err := f.portal.Register(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "13900000002", u.Phone)

	_, err = f.portal.Register(ctx, form)
	require.Error(t, err)
	assert.Equal(t, "该手机号已注册", api.Message(err, "注册失败"))
}

func TestRegister_LocalValidation(t *testing.T) {
	f := newFixture(t, 0)
	f.srv.ResetCalls()

	_, err := f.portal.Register(context.Background(), RegisterForm{
		Phone:           "23900000002",
		Password:        "12345",
		ConfirmPassword: "54321",
		Nickname:        "明",
		ChildGrade:      "大学",
	})
	var verrs validate.Errors
	require.True(t, errors.As(err, &verrs))
	for _, field := range []string{"phone", "password", "confirm_password", "nickname", "child_grade"} {
		assert.Contains(t, verrs, field)
	}
	assert.Empty(t, f.srv.Calls())
}

func TestVocabulary(t *testing.T) {
	assert.Len(t, PrimaryGrades(), 5)
	assert.Equal(t, []string{"预初", "初中1年级", "初中2年级", "初中3年级"}, MiddleGrades())
	assert.Len(t, HighGrades(), 3)

	g := ToggleGrade(nil, "预初")
	assert.Equal(t, []string{"预初"}, g)
	g = ToggleGrade(g, "高中1年级")
	g = ToggleGrade(g, "预初")
	assert.Equal(t, []string{"高中1年级"}, g)
}
