// ABOUTME: Wire types for the edushare REST API
// ABOUTME: Mirrors the backend's request and response schemas

package api

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// FlexID accepts either a JSON string or number; the backend is not consistent
// about identifier types in audit records.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// User is the identity record returned by /auth/me and /admin/users.
type User struct {
	ID             int64   `json:"id"`
	Phone          string  `json:"phone"`
	Nickname       string  `json:"nickname"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	City           *string `json:"city,omitempty"`
	ChildGrade     *string `json:"child_grade,omitempty"`
	Points         int     `json:"points"`
	Level          string  `json:"level"`
	DailyDownloads int     `json:"daily_downloads"`
	LastSigninDate *string `json:"last_signin_date,omitempty"`
	IsActive       bool    `json:"is_active"`
	// IsAdmin and Role are optional authorization claims. Servers that omit
	// them are asked through an admin-only endpoint instead.
	IsAdmin   bool   `json:"is_admin,omitempty"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginResult is the response of POST /auth/login.
type LoginResult struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
	GradeUpgraded bool   `json:"grade_upgraded,omitempty"`
	NewGrade      string `json:"new_grade,omitempty"`
	Message       string `json:"message,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Nickname        string `json:"nickname"`
	ChildGrade      string `json:"child_grade"`
}

// ConfigEntry is one system configuration record. Value is an opaque JSON document.
type ConfigEntry struct {
	ID          int64           `json:"id"`
	Key         string          `json:"config_key"`
	Value       json.RawMessage `json:"config_value"`
	Description string          `json:"description"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
}

// CreateConfigRequest is the body of POST /admin/configs.
type CreateConfigRequest struct {
	Key         string `json:"config_key"`
	Value       any    `json:"config_value"`
	Description string `json:"description"`
}

// UpdateConfigRequest is the body of PUT /admin/configs/{id}.
type UpdateConfigRequest struct {
	Value       any    `json:"config_value"`
	Description string `json:"description"`
}

// UserUpdate is the body of PUT /admin/users/{id}.
type UserUpdate struct {
	Points   int    `json:"points"`
	Level    string `json:"level"`
	IsActive bool   `json:"is_active"`
}

// Resource is an uploaded educational resource.
type Resource struct {
	ID            int64  `json:"id"`
	UploaderID    int64  `json:"uploader_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	FileType      string `json:"file_type"`
	Grade         string `json:"grade"`
	Subject       string `json:"subject"`
	ResourceType  string `json:"resource_type"`
	DownloadCount int    `json:"download_count"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// ResourceUpdate is the body of PUT /admin/resources/{id}.
type ResourceUpdate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Grade       string `json:"grade"`
	Subject     string `json:"subject"`
	IsActive    bool   `json:"is_active"`
}

// LogEntry is one admin audit record.
type LogEntry struct {
	ID                int64           `json:"id"`
	AdminPhone        string          `json:"admin_phone"`
	ActionType        string          `json:"action_type"`
	TargetType        string          `json:"target_type"`
	TargetID          FlexID          `json:"target_id"`
	ActionDescription string          `json:"action_description"`
	OldData           json.RawMessage `json:"old_data,omitempty"`
	NewData           json.RawMessage `json:"new_data,omitempty"`
	IPAddress         string          `json:"ip_address"`
	UserAgent         string          `json:"user_agent"`
	CreatedAt         string          `json:"created_at"`
}

// ListQuery selects one page of an admin list.
type ListQuery struct {
	Page    int
	Size    int
	Keyword string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	return v
}

// SearchQuery filters the public resource listing. Empty fields are omitted.
type SearchQuery struct {
	Keyword      string
	Grade        string
	Subject      string
	ResourceType string
	Page         int
	Size         int
}

func (q SearchQuery) values() url.Values {
	v := ListQuery{Page: q.Page, Size: q.Size, Keyword: q.Keyword}.values()
	if q.Grade != "" {
		v.Set("grade", q.Grade)
	}
	if q.Subject != "" {
		v.Set("subject", q.Subject)
	}
	if q.ResourceType != "" {
		v.Set("resource_type", q.ResourceType)
	}
	return v
}

// ResourcePage is the response of GET /resources/.
type ResourcePage struct {
	Items []Resource `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
	Pages int        `json:"pages"`
}

// DownloadResult is the response of POST /downloads/{id}.
type DownloadResult struct {
	Message     string `json:"message"`
	DownloadURL string `json:"download_url"`
}
