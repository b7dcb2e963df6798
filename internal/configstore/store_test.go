// ABOUTME: Tests for the cached configuration store
// ABOUTME: Uses the fake backend for fetches and checks defaults and decode fallbacks

package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/apitest"
)

func newStore(t *testing.T) (*apitest.Server, *Store) {
	t.Helper()
	srv := apitest.New(t)
	id := srv.AddAdmin("secret1")
	client, err := api.NewClient(srv.BaseURL())
	require.NoError(t, err)
	client.SetToken(srv.IssueToken(id))
	return srv, NewStore(client)
}

func TestStore_DefaultsBeforeAnyEntry(t *testing.T) {
	_, s := newStore(t)
	require.NoError(t, s.LoadAll(context.Background()))

	pr, fromServer := s.PointRules()
	assert.False(t, fromServer)
	assert.Equal(t, DefaultPointRules(), pr)

	ul, fromServer := s.UserLevels()
	assert.False(t, fromServer)
	assert.Len(t, ul, 4)
	assert.Equal(t, Unbounded, ul["专家用户"].MaxPoints)

	ss, fromServer := s.SystemSettings()
	assert.False(t, fromServer)
	assert.Equal(t, int64(52428800), ss.MaxFileSize)
	assert.Contains(t, ss.AllowedFileTypes, "pptx")

	_, ok := s.Lookup(BucketPointRules)
	assert.False(t, ok)
}

func TestStore_ServerDocuments(t *testing.T) {
	srv, s := newStore(t)
	srv.AddConfig("point_rules_admin", "积分规则配置", PointRules{RegisterPoints: 50, UploadPoints: 30, DownloadCost: 2})
	srv.AddConfig("user_levels_admin", "用户等级配置", UserLevels{"青铜": {MinPoints: 0, MaxPoints: Unbounded, DailyDownloads: 3}})
	srv.AddConfig("banner", "首页横幅", map[string]any{"text": "hello"})
	srv.AddConfig("demo_config", "demo", map[string]any{})

	require.NoError(t, s.LoadAll(context.Background()))
	assert.True(t, s.Loaded())

	pr, fromServer := s.PointRules()
	assert.True(t, fromServer)
	assert.Equal(t, 50, pr.RegisterPoints)
	assert.Equal(t, 2, pr.DownloadCost)

	ul, fromServer := s.UserLevels()
	assert.True(t, fromServer)
	assert.Equal(t, UserLevels{"青铜": {MinPoints: 0, MaxPoints: -1, DailyDownloads: 3}}, ul)

	other := s.Other()
	require.Len(t, other, 1)
	assert.Equal(t, "banner", other[0].Key)

	e, ok := s.LookupKey("demo_config")
	assert.True(t, ok)
	assert.Equal(t, "demo_config", e.Key)
}

func TestStore_MalformedDocumentFallsBack(t *testing.T) {
	srv, s := newStore(t)
	srv.AddConfig("system_settings_admin", "系统基础设置", map[string]any{"max_file_size": "big"})

	require.NoError(t, s.LoadAll(context.Background()))

	ss, fromServer := s.SystemSettings()
	assert.False(t, fromServer)
	assert.Equal(t, DefaultSystemSettings(), ss)

	// The entry still exists, so a save must update it rather than create.
	_, ok := s.Lookup(BucketSystemSettings)
	assert.True(t, ok)
}

func TestStore_LoadFailureKeepsCache(t *testing.T) {
	srv, s := newStore(t)
	srv.AddConfig("point_rules_admin", "积分规则配置", DefaultPointRules())
	ctx := context.Background()
	require.NoError(t, s.LoadAll(ctx))

	srv.Fail(http.MethodGet, "/api/v1/admin/configs", http.StatusInternalServerError, "boom", 1)
	err := s.LoadAll(ctx)
	require.Error(t, err)
	assert.Equal(t, "boom", api.Message(err, ""))

	_, ok := s.Lookup(BucketPointRules)
	assert.True(t, ok)
}

func TestStore_IdempotentLoads(t *testing.T) {
	srv, s := newStore(t)
	srv.AddConfig("point_rules_admin", "积分规则配置", DefaultPointRules())
	srv.AddConfig("a", "", map[string]any{"x": 1})
	ctx := context.Background()

	require.NoError(t, s.LoadAll(ctx))
	first := s.Classification()
	require.NoError(t, s.LoadAll(ctx))
	assert.Equal(t, first, s.Classification())
}

type staticLister struct {
	entries []api.ConfigEntry
	err     error
}

func (l staticLister) ListConfigs(context.Context) ([]api.ConfigEntry, error) {
	return l.entries, l.err
}

func TestStore_WithStaticLister(t *testing.T) {
	s := NewStore(staticLister{entries: []api.ConfigEntry{
		{ID: 1, Key: "user_levels", Value: json.RawMessage(`[1,2]`)},
	}})
	require.NoError(t, s.LoadAll(context.Background()))

	ul, fromServer := s.UserLevels()
	assert.False(t, fromServer)
	assert.Equal(t, DefaultUserLevels(), ul)

	failing := NewStore(staticLister{err: errors.New("offline")})
	assert.Error(t, failing.LoadAll(context.Background()))
	assert.False(t, failing.Loaded())
}

func TestDocuments_CloneIndependence(t *testing.T) {
	ul := DefaultUserLevels()
	cp := ul.Clone()
	cp["新手用户"] = Level{MinPoints: 1}
	assert.Equal(t, 0, ul["新手用户"].MinPoints)
	assert.Equal(t, 499, ul["新手用户"].MaxPoints)

	ss := DefaultSystemSettings()
	sc := ss.Clone()
	sc.AllowedFileTypes[0] = "exe"
	assert.Equal(t, "pdf", ss.AllowedFileTypes[0])
}

func TestStore_ApplyReclassifies(t *testing.T) {
	srv, s := newStore(t)
	srv.AddConfig("banner", "首页横幅", map[string]any{"text": "hello"})
	require.NoError(t, s.LoadAll(context.Background()))

	created := api.ConfigEntry{ID: 900, Key: "point_rules_admin", Value: json.RawMessage(`{"upload_points":40}`)}
	s.Apply(created)

	e, ok := s.Lookup(BucketPointRules)
	require.True(t, ok)
	assert.Equal(t, int64(900), e.ID)
	pr, fromServer := s.PointRules()
	assert.True(t, fromServer)
	assert.Equal(t, 40, pr.UploadPoints)

	created.Value = json.RawMessage(`{"upload_points":45}`)
	s.Apply(created)
	pr, _ = s.PointRules()
	assert.Equal(t, 45, pr.UploadPoints)

	_, ok = s.LookupKey("banner")
	assert.True(t, ok)
	assert.Len(t, s.Other(), 1)
}
