// ABOUTME: Route handlers of the fake backend
// ABOUTME: Behaviour follows the real server closely enough for client tests

package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/2389/edushare/internal/api"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	var found *userRecord
	for _, u := range s.users {
		if u.Phone == req.Phone && u.password == req.Password {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeDetail(w, http.StatusUnauthorized, "手机号或密码错误")
		return
	}
	if !found.IsActive {
		writeDetail(w, http.StatusBadRequest, "账户已被禁用")
		return
	}

	token := s.IssueToken(found.ID)
	writeJSON(w, http.StatusOK, api.LoginResult{AccessToken: token, TokenType: "bearer", ExpiresIn: 3600})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	s.mu.Lock()
	user := u.User
	if s.plainIdentity {
		user.IsAdmin = false
		user.Role = ""
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeDetail(w, http.StatusBadRequest, "两次输入的密码不一致")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Phone == req.Phone {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "该手机号已注册")
			return
		}
	}
	s.mu.Unlock()

	grade := req.ChildGrade
	id := s.AddUser(api.User{Phone: req.Phone, Nickname: req.Nickname, ChildGrade: &grade, Points: 100}, req.Password)
	u, _ := s.User(id)
	writeJSON(w, http.StatusOK, u)
}

// ---------------------------------------------------------------------------
// Admin configs

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]api.ConfigEntry{}, s.configs...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	writeJSON(w, http.StatusOK, out)
}

type configBody struct {
	Key         string          `json:"config_key"`
	Value       json.RawMessage `json:"config_value"`
	Description string          `json:"description"`
}

// objectValue reports whether raw is a JSON object, matching the server's
// Dict[str, Any] schema.
func objectValue(raw json.RawMessage) bool {
	var m map[string]any
	return json.Unmarshal(raw, &m) == nil && m != nil
}

func validationError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []any{"body", field}, "msg": msg, "type": "type_error"}},
	})
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	actor, _ := s.currentUser(r)

	var body configBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if !objectValue(body.Value) {
		validationError(w, "config_value", "value is not a valid dict")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.configs {
		if c.Key == body.Key {
			writeDetail(w, http.StatusBadRequest, "配置键已存在")
			return
		}
	}
	s.nextID++
	e := api.ConfigEntry{
		ID: s.nextID, Key: body.Key, Value: body.Value, Description: body.Description,
		IsActive: true, CreatedAt: now(), UpdatedAt: now(),
	}
	s.configs = append(s.configs, e)
	s.appendLogLocked(actor.Phone, "create_config", "config", e.ID, "创建配置 "+e.Key)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	actor, _ := s.currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}

	var body configBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if !objectValue(body.Value) {
		validationError(w, "config_value", "value is not a valid dict")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.configs {
		if s.configs[i].ID != id {
			continue
		}
		s.configs[i].Value = body.Value
		s.configs[i].Description = body.Description
		s.configs[i].UpdatedAt = now()
		s.appendLogLocked(actor.Phone, "update_config", "config", id, "更新配置 "+s.configs[i].Key)
		writeJSON(w, http.StatusOK, s.configs[i])
		return
	}
	writeDetail(w, http.StatusNotFound, "配置不存在")
}

// ---------------------------------------------------------------------------
// Admin users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, size := paging(r)
	kw := r.URL.Query().Get("keyword")

	s.mu.Lock()
	all := s.sortedUsersLocked()
	s.mu.Unlock()

	filtered := all[:0:0]
	for _, u := range all {
		if kw == "" || strings.Contains(u.Phone, kw) || strings.Contains(u.Nickname, kw) {
			filtered = append(filtered, u)
		}
	}
	writeJSON(w, http.StatusOK, slicePage(filtered, page, size))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := s.currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}
	var upd api.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "用户不存在")
		return
	}
	u.Points = upd.Points
	u.Level = upd.Level
	u.IsActive = upd.IsActive
	u.UpdatedAt = now()
	s.appendLogLocked(actor.Phone, "update_user", "user", id, "更新用户 "+u.Phone)
	writeJSON(w, http.StatusOK, map[string]string{"message": "用户信息更新成功"})
}

// ---------------------------------------------------------------------------
// Admin resources

func (s *Server) handleListAdminResources(w http.ResponseWriter, r *http.Request) {
	page, size := paging(r)
	kw := r.URL.Query().Get("keyword")

	s.mu.Lock()
	all := append([]api.Resource{}, s.resources...)
	s.mu.Unlock()

	filtered := all[:0:0]
	for _, res := range all {
		if kw == "" || strings.Contains(res.Title, kw) {
			filtered = append(filtered, res)
		}
	}
	writeJSON(w, http.StatusOK, slicePage(filtered, page, size))
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	actor, _ := s.currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}
	var upd api.ResourceUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.resources {
		if s.resources[i].ID != id {
			continue
		}
		res := &s.resources[i]
		res.Title = upd.Title
		res.Description = upd.Description
		res.Grade = upd.Grade
		res.Subject = upd.Subject
		res.IsActive = upd.IsActive
		res.UpdatedAt = now()
		s.appendLogLocked(actor.Phone, "update_resource", "resource", id, "更新资源 "+res.Title)
		writeJSON(w, http.StatusOK, map[string]string{"message": "资源信息更新成功"})
		return
	}
	writeDetail(w, http.StatusNotFound, "资源不存在")
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	actor, _ := s.currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, res := range s.resources {
		if res.ID != id {
			continue
		}
		s.resources = slices.Delete(s.resources, i, i+1)
		delete(s.files, res.FileName)
		s.appendLogLocked(actor.Phone, "delete_resource", "resource", id, "删除资源 "+res.Title)
		writeJSON(w, http.StatusOK, map[string]string{"message": "资源删除成功"})
		return
	}
	writeDetail(w, http.StatusNotFound, "资源不存在")
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	page, size := paging(r)

	s.mu.Lock()
	all := append([]api.LogEntry{}, s.logs...)
	s.mu.Unlock()

	// newest first
	slices.Reverse(all)
	writeJSON(w, http.StatusOK, slicePage(all, page, size))
}

// ---------------------------------------------------------------------------
// Portal

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, size := paging(r)
	q := r.URL.Query()

	s.mu.Lock()
	all := append([]api.Resource{}, s.resources...)
	s.mu.Unlock()

	var matched []api.Resource
	for _, res := range all {
		if !res.IsActive {
			continue
		}
		if kw := q.Get("keyword"); kw != "" && !strings.Contains(res.Title, kw) && !strings.Contains(res.Description, kw) {
			continue
		}
		if g := q.Get("grade"); g != "" && !slices.Contains(strings.Split(res.Grade, ","), g) {
			continue
		}
		if v := q.Get("subject"); v != "" && res.Subject != v {
			continue
		}
		if v := q.Get("resource_type"); v != "" && res.ResourceType != v {
			continue
		}
		matched = append(matched, res)
	}

	pages := (len(matched) + size - 1) / size
	writeJSON(w, http.StatusOK, api.ResourcePage{
		Items: slicePage(matched, page, size),
		Total: len(matched),
		Page:  page,
		Size:  size,
		Pages: pages,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	for _, field := range []string{"title", "grade", "subject", "resource_type"} {
		if r.FormValue(field) == "" {
			validationError(w, field, "field required")
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		validationError(w, "file", "field required")
		return
	}
	defer file.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeDetail(w, http.StatusBadRequest, "reading file")
		return
	}

	res := api.Resource{
		UploaderID:   u.ID,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		FileName:     header.Filename,
		FileType:     strings.TrimPrefix(path.Ext(header.Filename), "."),
		Grade:        r.FormValue("grade"),
		Subject:      r.FormValue("subject"),
		ResourceType: r.FormValue("resource_type"),
		IsActive:     true,
	}
	id := s.AddResource(res, buf.Bytes())

	s.mu.Lock()
	s.users[u.ID].Points += UploadPoints
	s.mu.Unlock()

	stored, _ := s.Resource(id)
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.resources, func(res api.Resource) bool { return res.ID == id && res.IsActive })
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "资源不存在")
		return
	}
	res := &s.resources[idx]
	user := s.users[u.ID]
	if res.UploaderID != user.ID {
		if user.Points < DownloadCost {
			writeDetail(w, http.StatusBadRequest, "积分不足，无法下载")
			return
		}
		user.Points -= DownloadCost
	}
	res.DownloadCount++
	user.DailyDownloads++

	writeJSON(w, http.StatusOK, api.DownloadResult{
		Message:     "下载成功",
		DownloadURL: fmt.Sprintf("/uploads/resources/%s", res.FileName),
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	content, ok := s.files[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	_, _ = w.Write(content)
}
