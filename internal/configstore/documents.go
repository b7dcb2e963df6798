// ABOUTME: Typed configuration documents and their display-only defaults
// ABOUTME: Defaults are shown when no server entry exists yet; they are never saved implicitly

package configstore

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Unbounded marks a level with no upper points limit.
const Unbounded = -1

// PointRules is the document of the point_rules bucket.
type PointRules struct {
	RegisterPoints     int `json:"register_points"`
	UploadPoints       int `json:"upload_points"`
	DownloadCost       int `json:"download_cost"`
	DailySigninPoints  int `json:"daily_signin_points"`
	DailyDownloadLimit int `json:"daily_download_limit"`
}

// Level is one user level. MaxPoints may be Unbounded.
type Level struct {
	MinPoints      int `json:"min_points"`
	MaxPoints      int `json:"max_points"`
	DailyDownloads int `json:"daily_downloads"`
}

// UserLevels maps level names to their ranges.
type UserLevels map[string]Level

// SystemSettings is the document of the system_settings bucket.
type SystemSettings struct {
	MaxFileSize          int64    `json:"max_file_size"`
	AllowedFileTypes     []string `json:"allowed_file_types"`
	AutoApproveResources bool     `json:"auto_approve_resources"`
	MaintenanceMode      bool     `json:"maintenance_mode"`
}

func DefaultPointRules() PointRules {
	return PointRules{
		RegisterPoints:     100,
		UploadPoints:       20,
		DownloadCost:       5,
		DailySigninPoints:  10,
		DailyDownloadLimit: 10,
	}
}

func DefaultUserLevels() UserLevels {
	return UserLevels{
		"新手用户": {MinPoints: 0, MaxPoints: 499, DailyDownloads: 5},
		"活跃用户": {MinPoints: 500, MaxPoints: 1999, DailyDownloads: 10},
		"资深用户": {MinPoints: 2000, MaxPoints: 4999, DailyDownloads: 15},
		"专家用户": {MinPoints: 5000, MaxPoints: Unbounded, DailyDownloads: 20},
	}
}

func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		MaxFileSize:          50 * 1024 * 1024,
		AllowedFileTypes:     []string{"pdf", "doc", "docx", "ppt", "pptx", "xls", "xlsx", "jpg", "png"},
		AutoApproveResources: true,
		MaintenanceMode:      false,
	}
}

// Clone returns an independent copy.
func (u UserLevels) Clone() UserLevels {
	return maps.Clone(u)
}

// Clone returns an independent copy.
func (s SystemSettings) Clone() SystemSettings {
	s.AllowedFileTypes = append([]string(nil), s.AllowedFileTypes...)
	return s
}

// decodeDocument decodes an entry value into v, requiring a JSON object.
func decodeDocument(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("empty document")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}
