// ABOUTME: Raw JSON editor for configuration entries outside the semantic buckets
// ABOUTME: Documents are parsed locally before any network call; delete is unsupported

package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/configstore"
	"github.com/2389/edushare/internal/validate"
)

var (
	// ErrInvalidDocument is returned when the edited text is not a JSON object.
	ErrInvalidDocument = errors.New("config value must be a valid JSON object")

	// ErrUnsupported is returned by Delete; the server has no delete endpoint.
	ErrUnsupported = errors.New("deleting configs is not supported")

	// ErrKeyFixed is returned when renaming an existing entry.
	ErrKeyFixed = errors.New("config key cannot change once created")
)

type genericForm struct {
	Key         string `json:"config_key" validate:"notblank,max=100"`
	Description string `json:"description" validate:"notblank"`
	Text        string `json:"-"`
}

// GenericEditor edits any entry as key, description and JSON text.
type GenericEditor struct {
	dialog
	id   int64
	form genericForm
}

func NewGenericEditor(store *configstore.Store, writer Writer) *GenericEditor {
	e := &GenericEditor{}
	e.init(store, writer, "generic", "保存配置失败")
	return e
}

// Open starts editing entry. The document is shown indented by two spaces.
func (e *GenericEditor) Open(entry api.ConfigEntry) error {
	text := prettyJSON(entry.Value)
	return e.open(func() {
		e.id = entry.ID
		e.form = genericForm{Key: entry.Key, Description: entry.Description, Text: text}
	})
}

// OpenNew starts a blank create flow.
func (e *GenericEditor) OpenNew() error {
	return e.open(func() {
		e.id = 0
		e.form = genericForm{Text: "{}"}
	})
}

func prettyJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Editing reports whether an existing entry is open, as opposed to a new one.
func (e *GenericEditor) Editing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id != 0
}

func (e *GenericEditor) Key() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.Key
}

func (e *GenericEditor) Description() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.Description
}

func (e *GenericEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.Text
}

func (e *GenericEditor) SetKey(key string) error {
	return e.edit(func() error {
		if e.id != 0 && key != e.form.Key {
			return ErrKeyFixed
		}
		e.form.Key = key
		return nil
	})
}

func (e *GenericEditor) SetDescription(desc string) error {
	return e.edit(func() error {
		e.form.Description = desc
		return nil
	})
}

func (e *GenericEditor) SetText(text string) error {
	return e.edit(func() error {
		e.form.Text = text
		return nil
	})
}

// Save validates the form and parses the document locally, then updates the
// open entry, or the cached entry with the same key, or creates a new one.
// Local failures leave the dialog Open without touching the network.
func (e *GenericEditor) Save(ctx context.Context) error {
	var (
		id   int64
		form genericForm
	)
	if err := e.edit(func() error {
		id, form = e.id, e.form
		return nil
	}); err != nil {
		return err
	}

	if err := validate.Struct(form); err != nil {
		return e.fail(err)
	}
	value, err := parseDocument(form.Text)
	if err != nil {
		return e.fail(err)
	}

	return e.run(ctx, func(ctx context.Context) (*api.ConfigEntry, error) {
		if id == 0 {
			if existing, ok := e.store.LookupKey(form.Key); ok {
				id = existing.ID
			}
		}
		if id != 0 {
			updated, err := e.writer.UpdateConfig(ctx, id, api.UpdateConfigRequest{
				Value:       value,
				Description: form.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("updating %s: %w", form.Key, err)
			}
			e.logger.Info("config updated", "config_key", form.Key, "id", id)
			return updated, nil
		}

		created, err := e.writer.CreateConfig(ctx, api.CreateConfigRequest{
			Key:         form.Key,
			Value:       value,
			Description: form.Description,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", form.Key, err)
		}
		e.logger.Info("config created", "config_key", created.Key, "id", created.ID)
		return created, nil
	})
}

// parseDocument returns the compacted document when text is a JSON object.
func parseDocument(text string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if obj == nil {
		return nil, ErrInvalidDocument
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return buf.Bytes(), nil
}

// Delete always fails: configuration entries cannot be deleted.
func (e *GenericEditor) Delete(api.ConfigEntry) error {
	return ErrUnsupported
}
