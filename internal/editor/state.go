// ABOUTME: Shared dialog state machine and create-or-update dispatch for typed editors
// ABOUTME: A successful save closes the dialog and reloads the config store

package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/busy"
	"github.com/2389/edushare/internal/configstore"
	"github.com/2389/edushare/internal/validate"
)

var (
	// ErrNotOpen is returned when editing or saving a closed dialog.
	ErrNotOpen = errors.New("editor is not open")

	// ErrNotLoaded is returned when saving before the config store has loaded;
	// without the entry list a save cannot tell create from update.
	ErrNotLoaded = errors.New("configs have not been loaded")
)

// State is the dialog state of an editor.
type State int

const (
	Closed State = iota
	Open
	Saving
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Saving:
		return "saving"
	default:
		return "closed"
	}
}

// Writer creates and updates configuration entries.
type Writer interface {
	CreateConfig(ctx context.Context, req api.CreateConfigRequest) (*api.ConfigEntry, error)
	UpdateConfig(ctx context.Context, id int64, req api.UpdateConfigRequest) (*api.ConfigEntry, error)
}

// dialog is the state shared by all editors.
type dialog struct {
	store    *configstore.Store
	writer   Writer
	logger   *slog.Logger
	failText string

	saving busy.Flag

	mu    sync.Mutex
	state State
	err   error
}

func (d *dialog) init(store *configstore.Store, writer Writer, name, failText string) {
	d.store = store
	d.writer = writer
	d.logger = slog.Default().With("component", "editor", "editor", name)
	d.failText = failText
}

// State returns the dialog state.
func (d *dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the error of the last failed save, or nil.
func (d *dialog) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Message returns the user-facing text of the last failed save: the server
// detail when present, otherwise a generic message.
func (d *dialog) Message() string {
	err := d.Err()
	if err == nil {
		return ""
	}
	var verrs validate.Errors
	if errors.As(err, &verrs) || errors.Is(err, ErrInvalidDocument) || errors.Is(err, ErrNotLoaded) {
		return err.Error()
	}
	return api.Message(err, d.failText)
}

// Cancel closes the dialog and discards the private copy.
func (d *dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Open {
		d.state = Closed
		d.err = nil
	}
}

// open runs snapshot under the lock and moves to Open. A dialog that is
// Saving cannot be reopened until the save finishes.
func (d *dialog) open(snapshot func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Saving {
		return busy.ErrBusy
	}
	snapshot()
	d.state = Open
	d.err = nil
	return nil
}

// edit runs fn under the lock when the dialog is Open.
func (d *dialog) edit(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Open {
		return ErrNotOpen
	}
	return fn()
}

// fail records a local validation failure; the dialog stays Open.
func (d *dialog) fail(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
	return err
}

// run drives one save: Open -> Saving -> Closed on success, back to Open on
// failure. commit performs the network call and returns the saved entry,
// which is recorded in the store before the reload. A reload failure after a
// successful commit is logged and the dialog stays closed.
func (d *dialog) run(ctx context.Context, commit func(ctx context.Context) (*api.ConfigEntry, error)) error {
	if !d.saving.TryAcquire() {
		return busy.ErrBusy
	}
	defer d.saving.Release()

	d.mu.Lock()
	if d.state != Open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	if !d.store.Loaded() {
		d.err = ErrNotLoaded
		d.mu.Unlock()
		return ErrNotLoaded
	}
	d.state = Saving
	d.mu.Unlock()

	saved, err := commit(ctx)
	if err != nil {
		d.mu.Lock()
		d.state = Open
		d.err = err
		d.mu.Unlock()
		d.logger.Warn("save failed", "error", err)
		return err
	}
	if saved != nil {
		d.store.Apply(*saved)
	}

	d.mu.Lock()
	d.state = Closed
	d.err = nil
	d.mu.Unlock()

	if err := d.store.LoadAll(ctx); err != nil {
		d.logger.Error("reloading configs after save", "error", err)
	}
	return nil
}

// saveBucket updates the entry currently holding bucket, keeping its
// description, or creates it under the bucket's fixed key.
func (d *dialog) saveBucket(ctx context.Context, b configstore.Bucket, value any) (*api.ConfigEntry, error) {
	if e, ok := d.store.Lookup(b); ok {
		updated, err := d.writer.UpdateConfig(ctx, e.ID, api.UpdateConfigRequest{
			Value:       value,
			Description: e.Description,
		})
		if err != nil {
			return nil, fmt.Errorf("updating %s: %w", e.Key, err)
		}
		d.logger.Info("config updated", "config_key", e.Key, "id", e.ID)
		return updated, nil
	}

	created, err := d.writer.CreateConfig(ctx, api.CreateConfigRequest{
		Key:         b.Key(),
		Value:       value,
		Description: b.Description(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", b.Key(), err)
	}
	d.logger.Info("config created", "config_key", created.Key, "id", created.ID)
	return created, nil
}
