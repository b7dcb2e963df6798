// ABOUTME: Typed editors for point rules, user levels and system settings
// ABOUTME: Each edits a private copy and saves it to the bucket's entry

package editor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/configstore"
)

// PointRulesEditor edits the point_rules bucket.
type PointRulesEditor struct {
	dialog
	doc configstore.PointRules
}

func NewPointRulesEditor(store *configstore.Store, writer Writer) *PointRulesEditor {
	e := &PointRulesEditor{}
	e.init(store, writer, "point_rules", "保存积分规则配置失败")
	return e
}

// Open snapshots the current document, or its default. It fails with
// busy.ErrBusy while a save is in flight.
func (e *PointRulesEditor) Open() error {
	doc, _ := e.store.PointRules()
	return e.open(func() { e.doc = doc })
}

// Document returns the private copy.
func (e *PointRulesEditor) Document() configstore.PointRules {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

// Edit mutates the private copy.
func (e *PointRulesEditor) Edit(fn func(*configstore.PointRules)) error {
	return e.edit(func() error {
		fn(&e.doc)
		return nil
	})
}

func (e *PointRulesEditor) Save(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context) (*api.ConfigEntry, error) {
		return e.saveBucket(ctx, configstore.BucketPointRules, e.Document())
	})
}

// LevelRow is one editable row of the user levels table.
type LevelRow struct {
	Name           string
	MinPoints      int
	MaxPoints      int
	DailyDownloads int
}

// NewLevelRow is the row appended by AddRow.
func NewLevelRow() LevelRow {
	return LevelRow{Name: "新等级", MinPoints: 0, MaxPoints: 999, DailyDownloads: 5}
}

// ToRows flattens a levels document into rows ordered by min_points, then name.
func ToRows(doc configstore.UserLevels) []LevelRow {
	rows := make([]LevelRow, 0, len(doc))
	for name, l := range doc {
		rows = append(rows, LevelRow{
			Name:           name,
			MinPoints:      l.MinPoints,
			MaxPoints:      l.MaxPoints,
			DailyDownloads: l.DailyDownloads,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MinPoints != rows[j].MinPoints {
			return rows[i].MinPoints < rows[j].MinPoints
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// ToDocument rebuilds a levels document, discarding rows with blank names.
// A repeated name keeps its last row.
func ToDocument(rows []LevelRow) configstore.UserLevels {
	doc := make(configstore.UserLevels, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		doc[r.Name] = configstore.Level{
			MinPoints:      r.MinPoints,
			MaxPoints:      r.MaxPoints,
			DailyDownloads: r.DailyDownloads,
		}
	}
	return doc
}

// UserLevelsEditor edits the user_levels bucket as a table of rows.
// Ranges are not checked for overlap or gaps.
type UserLevelsEditor struct {
	dialog
	rows []LevelRow
}

func NewUserLevelsEditor(store *configstore.Store, writer Writer) *UserLevelsEditor {
	e := &UserLevelsEditor{}
	e.init(store, writer, "user_levels", "保存用户等级配置失败")
	return e
}

func (e *UserLevelsEditor) Open() error {
	doc, _ := e.store.UserLevels()
	return e.open(func() { e.rows = ToRows(doc) })
}

// Rows returns a copy of the private rows.
func (e *UserLevelsEditor) Rows() []LevelRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LevelRow{}, e.rows...)
}

func (e *UserLevelsEditor) AddRow() error {
	return e.edit(func() error {
		e.rows = append(e.rows, NewLevelRow())
		return nil
	})
}

func (e *UserLevelsEditor) RemoveRow(i int) error {
	return e.edit(func() error {
		if i < 0 || i >= len(e.rows) {
			return fmt.Errorf("row %d out of range [0,%d)", i, len(e.rows))
		}
		e.rows = append(e.rows[:i], e.rows[i+1:]...)
		return nil
	})
}

func (e *UserLevelsEditor) SetRow(i int, row LevelRow) error {
	return e.edit(func() error {
		if i < 0 || i >= len(e.rows) {
			return fmt.Errorf("row %d out of range [0,%d)", i, len(e.rows))
		}
		e.rows[i] = row
		return nil
	})
}

func (e *UserLevelsEditor) Save(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context) (*api.ConfigEntry, error) {
		return e.saveBucket(ctx, configstore.BucketUserLevels, ToDocument(e.Rows()))
	})
}

// SystemSettingsEditor edits the system_settings bucket.
type SystemSettingsEditor struct {
	dialog
	doc configstore.SystemSettings
}

func NewSystemSettingsEditor(store *configstore.Store, writer Writer) *SystemSettingsEditor {
	e := &SystemSettingsEditor{}
	e.init(store, writer, "system_settings", "保存系统设置配置失败")
	return e
}

func (e *SystemSettingsEditor) Open() error {
	doc, _ := e.store.SystemSettings()
	return e.open(func() { e.doc = doc.Clone() })
}

func (e *SystemSettingsEditor) Document() configstore.SystemSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

func (e *SystemSettingsEditor) Edit(fn func(*configstore.SystemSettings)) error {
	return e.edit(func() error {
		fn(&e.doc)
		return nil
	})
}

func (e *SystemSettingsEditor) Save(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context) (*api.ConfigEntry, error) {
		return e.saveBucket(ctx, configstore.BucketSystemSettings, e.Document())
	})
}
