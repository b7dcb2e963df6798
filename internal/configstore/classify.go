// ABOUTME: Pure classification of configuration entries into buckets
// ABOUTME: Substring precedence: point_rules, user_levels, system_settings, then suppression

package configstore

import (
	"strings"

	"github.com/2389/edushare/internal/api"
)

// Bucket is a semantic configuration category.
type Bucket int

const (
	BucketOther Bucket = iota
	BucketPointRules
	BucketUserLevels
	BucketSystemSettings
)

func (b Bucket) String() string {
	switch b {
	case BucketPointRules:
		return "point_rules"
	case BucketUserLevels:
		return "user_levels"
	case BucketSystemSettings:
		return "system_settings"
	default:
		return "other"
	}
}

// Key is the entry key used when a bucket is first created.
func (b Bucket) Key() string {
	switch b {
	case BucketPointRules:
		return "point_rules_admin"
	case BucketUserLevels:
		return "user_levels_admin"
	case BucketSystemSettings:
		return "system_settings_admin"
	default:
		return ""
	}
}

// Description is the entry description used when a bucket is first created.
func (b Bucket) Description() string {
	switch b {
	case BucketPointRules:
		return "积分规则配置"
	case BucketUserLevels:
		return "用户等级配置"
	case BucketSystemSettings:
		return "系统基础设置"
	default:
		return ""
	}
}

// suppressed keys are legacy or demo entries hidden from every view.
var suppressed = map[string]struct{}{
	"allowed_file_types": {},
	"demo_config":        {},
	"max_file_size":      {},
	"ui_test_config":     {},
}

// BucketOf returns the bucket of a key. ok is false for suppressed keys.
func BucketOf(key string) (b Bucket, ok bool) {
	switch {
	case strings.Contains(key, "point_rules"):
		return BucketPointRules, true
	case strings.Contains(key, "user_levels"):
		return BucketUserLevels, true
	case strings.Contains(key, "system_settings"):
		return BucketSystemSettings, true
	}
	if _, hidden := suppressed[key]; hidden {
		return BucketOther, false
	}
	return BucketOther, true
}

// Classification is the result of classifying one fetched entry list.
// A nil typed entry means no server entry exists for that bucket.
type Classification struct {
	PointRules     *api.ConfigEntry
	UserLevels     *api.ConfigEntry
	SystemSettings *api.ConfigEntry
	Other          []api.ConfigEntry
}

// Classify assigns every entry to exactly one bucket, or drops it when suppressed.
// For duplicated typed buckets the last entry wins. Other keeps fetch order.
func Classify(entries []api.ConfigEntry) Classification {
	c := Classification{Other: []api.ConfigEntry{}}
	for i := range entries {
		e := entries[i]
		b, ok := BucketOf(e.Key)
		if !ok {
			continue
		}
		switch b {
		case BucketPointRules:
			c.PointRules = &e
		case BucketUserLevels:
			c.UserLevels = &e
		case BucketSystemSettings:
			c.SystemSettings = &e
		default:
			c.Other = append(c.Other, e)
		}
	}
	return c
}

// Entry returns the server entry of a typed bucket, or nil.
func (c Classification) Entry(b Bucket) *api.ConfigEntry {
	switch b {
	case BucketPointRules:
		return c.PointRules
	case BucketUserLevels:
		return c.UserLevels
	case BucketSystemSettings:
		return c.SystemSettings
	default:
		return nil
	}
}

func (c Classification) clone() Classification {
	out := Classification{Other: append([]api.ConfigEntry{}, c.Other...)}
	for _, p := range []struct {
		src *api.ConfigEntry
		dst **api.ConfigEntry
	}{
		{c.PointRules, &out.PointRules},
		{c.UserLevels, &out.UserLevels},
		{c.SystemSettings, &out.SystemSettings},
	} {
		if p.src != nil {
			e := *p.src
			*p.dst = &e
		}
	}
	return out
}
