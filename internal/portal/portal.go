// ABOUTME: Portal workflows: search, upload, download and registration
// ABOUTME: Uploads and downloads refresh the session user to pick up new points

package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/busy"
	"github.com/2389/edushare/internal/prompt"
	"github.com/2389/edushare/internal/validate"
)

// DefaultDownloadCost is the points cost shown in the download confirmation.
const DefaultDownloadCost = 10

var (
	// ErrMissingFile is returned when an upload has no file attached.
	ErrMissingFile = errors.New("no file selected for upload")

	// ErrCancelled is returned when the user refuses a download.
	ErrCancelled = prompt.ErrCancelled
)

// Backend defines the API operations the portal needs.
type Backend interface {
	SearchResources(ctx context.Context, q api.SearchQuery) (*api.ResourcePage, error)
	UploadResource(ctx context.Context, up api.UploadRequest) (*api.Resource, error)
	Download(ctx context.Context, resourceID int64) (*api.DownloadResult, error)
	Fetch(ctx context.Context, rawURL string, w io.Writer) (int64, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.User, error)
}

// Refresher re-fetches the session user. *session.Manager satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (*api.User, error)
}

// SearchForm filters the resource listing. Empty fields match everything.
type SearchForm struct {
	Keyword      string `json:"keyword" validate:"max=100"`
	Grade        string `json:"grade" validate:"omitempty,grade"`
	Subject      string `json:"subject" validate:"omitempty,subject"`
	ResourceType string `json:"resource_type" validate:"omitempty,restype"`
	Page         int    `json:"page" validate:"min=0"`
	Size         int    `json:"size" validate:"min=0,max=100"`
}

// UploadForm describes one upload. Grades are sent comma-joined.
type UploadForm struct {
	Title        string    `json:"title" validate:"notblank,max=200"`
	Grades       []string  `json:"grade" validate:"min=1,dive,grade"`
	Subject      string    `json:"subject" validate:"required,subject"`
	ResourceType string    `json:"resource_type" validate:"required,restype"`
	Description  string    `json:"description" validate:"max=2000"`
	FileName     string    `json:"-"`
	File         io.Reader `json:"-"`
}

// RegisterForm is the account registration form.
type RegisterForm struct {
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required,min=6,max=20"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Nickname        string `json:"nickname" validate:"required,min=2,max=20"`
	ChildGrade      string `json:"child_grade" validate:"required,grade"`
}

// Option configures a Portal.
type Option func(*Portal)

// WithDownloadCost sets the cost named in the download confirmation.
func WithDownloadCost(points int) Option {
	return func(p *Portal) { p.downloadCost = points }
}

// Portal holds the state of the end-user screens.
type Portal struct {
	backend      Backend
	session      Refresher
	logger       *slog.Logger
	downloadCost int

	uploading   busy.Flag
	downloading busy.Flag

	mu      sync.Mutex
	form    SearchForm
	results api.ResourcePage
}

// New creates a portal. session may be nil when no one is logged in.
func New(b Backend, session Refresher, opts ...Option) *Portal {
	p := &Portal{
		backend:      b,
		session:      session,
		logger:       slog.Default().With("component", "portal"),
		downloadCost: DefaultDownloadCost,
		results:      api.ResourcePage{Items: []api.Resource{}},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Search runs a search and remembers the form for Reload. A failed search
// leaves an empty result list.
func (p *Portal) Search(ctx context.Context, form SearchForm) (*api.ResourcePage, error) {
	if err := validate.Struct(form); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.form = form
	p.mu.Unlock()

	page, err := p.backend.SearchResources(ctx, api.SearchQuery{
		Keyword:      strings.TrimSpace(form.Keyword),
		Grade:        form.Grade,
		Subject:      form.Subject,
		ResourceType: form.ResourceType,
		Page:         form.Page,
		Size:         form.Size,
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.results = api.ResourcePage{Items: []api.Resource{}}
		return nil, fmt.Errorf("searching resources: %w", err)
	}
	p.results = *page
	out := *page
	out.Items = append([]api.Resource{}, page.Items...)
	return &out, nil
}

// Reload repeats the last search.
func (p *Portal) Reload(ctx context.Context) (*api.ResourcePage, error) {
	p.mu.Lock()
	form := p.form
	p.mu.Unlock()
	return p.Search(ctx, form)
}

// Results returns the last search results.
func (p *Portal) Results() api.ResourcePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.results
	out.Items = append([]api.Resource{}, p.results.Items...)
	return out
}

// Upload validates and sends a resource, then refreshes the session user and
// the search results. Refresh failures are logged only.
func (p *Portal) Upload(ctx context.Context, form UploadForm) (*api.Resource, error) {
	if err := validate.Struct(form); err != nil {
		return nil, err
	}
	if form.File == nil || strings.TrimSpace(form.FileName) == "" {
		return nil, ErrMissingFile
	}

	if !p.uploading.TryAcquire() {
		return nil, busy.ErrBusy
	}
	defer p.uploading.Release()

	res, err := p.backend.UploadResource(ctx, api.UploadRequest{
		Title:        strings.TrimSpace(form.Title),
		Grades:       form.Grades,
		Subject:      form.Subject,
		ResourceType: form.ResourceType,
		Description:  strings.TrimSpace(form.Description),
		FileName:     form.FileName,
		File:         form.File,
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", form.FileName, err)
	}
	p.logger.Info("resource uploaded", "resource_id", res.ID, "file", form.FileName)

	p.refresh(ctx)
	if _, err := p.Reload(ctx); err != nil {
		p.logger.Warn("reloading resources after upload", "error", err)
	}
	return res, nil
}

// DownloadPrompt is the confirmation shown before spending points.
func (p *Portal) DownloadPrompt(res api.Resource) string {
	return fmt.Sprintf("下载 \"%s\" 需要消耗%d积分，是否继续？", res.Title, p.downloadCost)
}

// Download asks for confirmation, then requests the download (which spends
// points server-side) and refreshes the session user. A refusal returns
// ErrCancelled without any call.
func (p *Portal) Download(ctx context.Context, res api.Resource, confirm prompt.Confirmer) (*api.DownloadResult, error) {
	ok, err := confirm.Confirm(ctx, p.DownloadPrompt(res))
	if err != nil {
		return nil, fmt.Errorf("confirming download: %w", err)
	}
	if !ok {
		return nil, ErrCancelled
	}

	if !p.downloading.TryAcquire() {
		return nil, busy.ErrBusy
	}
	defer p.downloading.Release()

	result, err := p.backend.Download(ctx, res.ID)
	if err != nil {
		return nil, fmt.Errorf("downloading resource %d: %w", res.ID, err)
	}
	p.logger.Info("download granted", "resource_id", res.ID)

	p.refresh(ctx)
	return result, nil
}

// Fetch streams the file behind a download URL into w.
func (p *Portal) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	return p.backend.Fetch(ctx, url, w)
}

// SaveTo fetches url into dir, naming the file after the resource. A partial
// file is removed on failure.
func (p *Portal) SaveTo(ctx context.Context, res api.Resource, url, dir string) (string, int64, error) {
	name := filepath.Base(res.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = fmt.Sprintf("resource-%d", res.ID)
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", path, err)
	}

	n, err := p.Fetch(ctx, url, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

// Register validates the form and creates an account.
func (p *Portal) Register(ctx context.Context, form RegisterForm) (*api.User, error) {
	if err := validate.Struct(form); err != nil {
		return nil, err
	}
	u, err := p.backend.Register(ctx, api.RegisterRequest{
		Phone:           form.Phone,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
		Nickname:        strings.TrimSpace(form.Nickname),
		ChildGrade:      form.ChildGrade,
	})
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", form.Phone, err)
	}
	p.logger.Info("account registered", "user_id", u.ID)
	return u, nil
}

func (p *Portal) refresh(ctx context.Context) {
	if p.session == nil {
		return
	}
	if _, err := p.session.Refresh(ctx); err != nil {
		p.logger.Warn("refreshing user", "error", err)
	}
}
