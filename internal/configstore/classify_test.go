// ABOUTME: Tests for configuration entry classification
// ABOUTME: Precedence, suppression, ordering and idempotence

package configstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/edushare/internal/api"
)

func entry(id int64, key string) api.ConfigEntry {
	return api.ConfigEntry{ID: id, Key: key, Value: json.RawMessage(`{}`), IsActive: true}
}

func TestBucketOf_Precedence(t *testing.T) {
	tests := []struct {
		key    string
		bucket Bucket
		ok     bool
	}{
		{"point_rules", BucketPointRules, true},
		{"point_rules_admin", BucketPointRules, true},
		{"user_levels_point_rules", BucketPointRules, true},
		{"system_settings_point_rules_user_levels", BucketPointRules, true},
		{"user_levels_admin", BucketUserLevels, true},
		{"system_settings_user_levels", BucketUserLevels, true},
		{"system_settings_admin", BucketSystemSettings, true},
		{"allowed_file_types", BucketOther, false},
		{"demo_config", BucketOther, false},
		{"max_file_size", BucketOther, false},
		{"ui_test_config", BucketOther, false},
		{"max_file_size_v2", BucketOther, true},
		{"site_banner", BucketOther, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			b, ok := BucketOf(tt.key)
			assert.Equal(t, tt.bucket, b)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestClassify_Buckets(t *testing.T) {
	entries := []api.ConfigEntry{
		entry(1, "site_banner"),
		entry(2, "point_rules_admin"),
		entry(3, "demo_config"),
		entry(4, "user_levels_admin"),
		entry(5, "footer_links"),
		entry(6, "system_settings_admin"),
		entry(7, "ui_test_config"),
	}

	c := Classify(entries)

	require.NotNil(t, c.PointRules)
	require.NotNil(t, c.UserLevels)
	require.NotNil(t, c.SystemSettings)
	assert.Equal(t, int64(2), c.PointRules.ID)
	assert.Equal(t, int64(4), c.UserLevels.ID)
	assert.Equal(t, int64(6), c.SystemSettings.ID)

	require.Len(t, c.Other, 2)
	assert.Equal(t, "site_banner", c.Other[0].Key)
	assert.Equal(t, "footer_links", c.Other[1].Key)
}

func TestClassify_LastDuplicateWins(t *testing.T) {
	c := Classify([]api.ConfigEntry{
		entry(1, "point_rules"),
		entry(2, "point_rules_admin"),
	})
	require.NotNil(t, c.PointRules)
	assert.Equal(t, int64(2), c.PointRules.ID)
}

func TestClassify_SuppressedNeverVisible(t *testing.T) {
	keys := []string{"allowed_file_types", "demo_config", "max_file_size", "ui_test_config"}
	var entries []api.ConfigEntry
	for i, k := range keys {
		entries = append(entries, entry(int64(i+1), k))
	}

	c := Classify(entries)

	assert.Nil(t, c.PointRules)
	assert.Nil(t, c.UserLevels)
	assert.Nil(t, c.SystemSettings)
	assert.Empty(t, c.Other)
}

func TestClassify_EmptyAndIdempotent(t *testing.T) {
	c := Classify(nil)
	assert.NotNil(t, c.Other)
	assert.Empty(t, c.Other)

	entries := []api.ConfigEntry{entry(1, "point_rules_admin"), entry(2, "x"), entry(3, "y")}
	assert.Equal(t, Classify(entries), Classify(entries))
}

func TestClassification_EntryAndClone(t *testing.T) {
	c := Classify([]api.ConfigEntry{entry(1, "user_levels_admin"), entry(2, "other")})

	assert.Nil(t, c.Entry(BucketPointRules))
	assert.Equal(t, int64(1), c.Entry(BucketUserLevels).ID)
	assert.Nil(t, c.Entry(BucketOther))

	cp := c.clone()
	cp.UserLevels.ID = 99
	cp.Other[0].Key = "changed"
	assert.Equal(t, int64(1), c.UserLevels.ID)
	assert.Equal(t, "other", c.Other[0].Key)
}

func TestBucket_FixedKeys(t *testing.T) {
	assert.Equal(t, "point_rules_admin", BucketPointRules.Key())
	assert.Equal(t, "积分规则配置", BucketPointRules.Description())
	assert.Equal(t, "user_levels_admin", BucketUserLevels.Key())
	assert.Equal(t, "用户等级配置", BucketUserLevels.Description())
	assert.Equal(t, "system_settings_admin", BucketSystemSettings.Key())
	assert.Equal(t, "系统基础设置", BucketSystemSettings.Description())
	assert.Empty(t, BucketOther.Key())
}
