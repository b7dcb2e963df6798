// ABOUTME: Edit dialogs for users and resources
// ABOUTME: Snapshot, validate locally, submit, then reload the owning list

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/busy"
	"github.com/2389/edushare/internal/validate"
)

// ErrNotOpen is returned when editing or saving a closed dialog.
var ErrNotOpen = errors.New("dialog is not open")

// UserForm holds the editable fields of a user.
type UserForm struct {
	ID       int64  `json:"-"`
	Points   int    `json:"points" validate:"min=0"`
	Level    string `json:"level" validate:"notblank"`
	IsActive bool   `json:"is_active"`
}

// ResourceForm holds the editable fields of a resource.
type ResourceForm struct {
	ID          int64  `json:"-"`
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Grade       string `json:"grade"`
	Subject     string `json:"subject"`
	IsActive    bool   `json:"is_active"`
}

// Dialog edits a private copy of one record.
type Dialog[F any] struct {
	submit   func(ctx context.Context, form F) error
	reload   func(ctx context.Context) error
	failText string
	logger   *slog.Logger

	saving busy.Flag

	mu   sync.Mutex
	open bool
	form F
	err  error
}

// UserEditor edits one user.
type UserEditor = Dialog[UserForm]

// ResourceEditor edits one resource.
type ResourceEditor = Dialog[ResourceForm]

// EditUser opens a dialog on a copy of u.
func (c *Console) EditUser(u api.User) *UserEditor {
	return &UserEditor{
		submit: func(ctx context.Context, f UserForm) error {
			return c.backend.UpdateUser(ctx, f.ID, api.UserUpdate{
				Points:   f.Points,
				Level:    f.Level,
				IsActive: f.IsActive,
			})
		},
		reload:   c.Users.Load,
		failText: "更新用户失败",
		logger:   c.logger.With("dialog", "user", "user_id", u.ID),
		open:     true,
		form:     UserForm{ID: u.ID, Points: u.Points, Level: u.Level, IsActive: u.IsActive},
	}
}

// EditResource opens a dialog on a copy of r.
func (c *Console) EditResource(r api.Resource) *ResourceEditor {
	return &ResourceEditor{
		submit: func(ctx context.Context, f ResourceForm) error {
			return c.backend.UpdateResource(ctx, f.ID, api.ResourceUpdate{
				Title:       f.Title,
				Description: f.Description,
				Grade:       f.Grade,
				Subject:     f.Subject,
				IsActive:    f.IsActive,
			})
		},
		reload:   c.Resources.Load,
		failText: "更新资源失败",
		logger:   c.logger.With("dialog", "resource", "resource_id", r.ID),
		open:     true,
		form: ResourceForm{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Grade:       r.Grade,
			Subject:     r.Subject,
			IsActive:    r.IsActive,
		},
	}
}

// Form returns the private copy.
func (d *Dialog[F]) Form() F {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form
}

// Edit mutates the private copy.
func (d *Dialog[F]) Edit(fn func(*F)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	fn(&d.form)
	return nil
}

func (d *Dialog[F]) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Cancel closes the dialog without saving.
func (d *Dialog[F]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.err = nil
}

// Err returns the error of the last failed save.
func (d *Dialog[F]) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Message is the user-facing text of the last failed save.
func (d *Dialog[F]) Message() string {
	err := d.Err()
	if err == nil {
		return ""
	}
	var verrs validate.Errors
	if errors.As(err, &verrs) {
		return err.Error()
	}
	return api.Message(err, d.failText)
}

// Save validates and submits the copy. On success the dialog closes and the
// list reloads; a reload failure is only logged.
func (d *Dialog[F]) Save(ctx context.Context) error {
	if !d.saving.TryAcquire() {
		return busy.ErrBusy
	}
	defer d.saving.Release()

	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	form := d.form
	d.mu.Unlock()

	err := validate.Struct(form)
	if err == nil {
		if err = d.submit(ctx, form); err != nil {
			err = fmt.Errorf("saving: %w", err)
		}
	}
	if err != nil {
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		d.logger.Warn("save failed", "error", err)
		return err
	}

	d.mu.Lock()
	d.open = false
	d.err = nil
	d.mu.Unlock()
	d.logger.Info("saved")

	if err := d.reload(ctx); err != nil {
		d.logger.Error("reloading list after save", "error", err)
	}
	return nil
}
