// ABOUTME: In-memory fake of the edushare REST backend served over httptest
// ABOUTME: Lets client-side packages test real HTTP round trips without the Python server

package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/edushare/internal/api"
)

// AdminPhone is the phone number the fake marks as an administrator by default.
const AdminPhone = "13901119451"

// UploadPoints and DownloadCost mirror the backend's default point rules.
const (
	UploadPoints = 20
	DownloadCost = 5
)

var signingKey = []byte("apitest-signing-key-32-bytes-ok!")

// Call records one request received by the fake.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type failure struct {
	status int
	detail string
	times  int // <0: until cleared
}

type userRecord struct {
	api.User
	password string
}

// Server is a fake backend. Exported helpers seed and inspect its state.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[int64]*userRecord
	tokens    map[string]int64
	configs   []api.ConfigEntry
	resources []api.Resource
	logs      []api.LogEntry
	files     map[string][]byte
	calls     []Call
	failures  map[string]*failure
	nextID    int64

	// plainIdentity drops is_admin and role from /auth/me
	plainIdentity bool
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:    make(map[int64]*userRecord),
		tokens:   make(map[string]int64),
		files:    make(map[string][]byte),
		failures: make(map[string]*failure),
		nextID:   100,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the API root, e.g. http://127.0.0.1:1234/api/v1.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1"
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)

	mux.HandleFunc("GET /api/v1/admin/configs", s.admin(s.handleListConfigs))
	mux.HandleFunc("POST /api/v1/admin/configs", s.admin(s.handleCreateConfig))
	mux.HandleFunc("PUT /api/v1/admin/configs/{id}", s.admin(s.handleUpdateConfig))
	mux.HandleFunc("GET /api/v1/admin/users", s.admin(s.handleListUsers))
	mux.HandleFunc("PUT /api/v1/admin/users/{id}", s.admin(s.handleUpdateUser))
	mux.HandleFunc("GET /api/v1/admin/resources", s.admin(s.handleListAdminResources))
	mux.HandleFunc("PUT /api/v1/admin/resources/{id}", s.admin(s.handleUpdateResource))
	mux.HandleFunc("DELETE /api/v1/admin/resources/{id}", s.admin(s.handleDeleteResource))
	mux.HandleFunc("GET /api/v1/admin/logs", s.admin(s.handleListLogs))

	mux.HandleFunc("GET /api/v1/resources/{$}", s.handleSearch)
	mux.HandleFunc("POST /api/v1/resources/{$}", s.handleUpload)
	mux.HandleFunc("POST /api/v1/downloads/{id}", s.handleDownload)
	mux.HandleFunc("GET /uploads/resources/{name}", s.handleFile)

	return s.record(mux)
}

// record logs every call and applies injected failures before routing.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") && r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		key := r.Method + " " + r.URL.Path
		f := s.failures[key]
		if f != nil {
			if f.times > 0 {
				f.times--
				if f.times == 0 {
					delete(s.failures, key)
				}
			}
		}
		s.mu.Unlock()

		if f != nil {
			writeDetail(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05")
}

// ---------------------------------------------------------------------------
// Seeding and inspection

// AddUser registers a user with the given password and returns its id.
func (s *Server) AddUser(u api.User, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextID++
		u.ID = s.nextID
	}
	if u.Level == "" {
		u.Level = "新手用户"
	}
	if u.CreatedAt == "" {
		u.CreatedAt = now()
	}
	u.IsActive = true
	s.users[u.ID] = &userRecord{User: u, password: password}
	return u.ID
}

// AddAdmin registers the default administrator account.
func (s *Server) AddAdmin(password string) int64 {
	return s.AddUser(api.User{Phone: AdminPhone, Nickname: "管理员", IsAdmin: true, Role: "admin", Points: 1000}, password)
}

// IssueToken returns a signed JWT whose sub claim is userID, accepted by the fake.
func (s *Server) IssueToken(userID int64) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("signing test token: %v", err))
	}
	s.MapToken(signed, userID)
	return signed
}

// PlainIdentity makes /auth/me answer with the bare user shape, without the
// is_admin and role claims. Admin endpoints still enforce the stored flag.
func (s *Server) PlainIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plainIdentity = true
}

// MapToken makes the fake accept token as a credential for userID.
func (s *Server) MapToken(token string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

// User returns a copy of the stored user.
func (s *Server) User(id int64) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return api.User{}, false
	}
	return u.User, true
}

// AddConfig seeds a configuration entry.
func (s *Server) AddConfig(key, description string, value any) api.ConfigEntry {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("encoding config %s: %v", key, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := api.ConfigEntry{ID: s.nextID, Key: key, Value: raw, Description: description, IsActive: true, CreatedAt: now(), UpdatedAt: now()}
	s.configs = append(s.configs, e)
	return e
}

// Configs returns a copy of the stored configuration entries.
func (s *Server) Configs() []api.ConfigEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ConfigEntry(nil), s.configs...)
}

// AddResource seeds a resource. A file body is stored under its file name.
func (s *Server) AddResource(r api.Resource, content []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	if r.CreatedAt == "" {
		r.CreatedAt = now()
	}
	if r.FileName == "" {
		r.FileName = fmt.Sprintf("res-%d.pdf", r.ID)
	}
	r.FileSize = int64(len(content))
	s.resources = append(s.resources, r)
	s.files[r.FileName] = content
	return r.ID
}

// Resource returns a copy of a stored resource.
func (s *Server) Resource(id int64) (api.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.resources {
		if r.ID == id {
			return r, true
		}
	}
	return api.Resource{}, false
}

// AddLog seeds an audit record.
func (s *Server) AddLog(e api.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	if e.CreatedAt == "" {
		e.CreatedAt = now()
	}
	s.logs = append(s.logs, e)
}

// Fail makes the next `times` requests matching method and path fail with
// status and detail. times < 0 fails until ClearFailures.
func (s *Server) Fail(method, path string, status int, detail string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = &failure{status: status, detail: detail, times: times}
}

// ClearFailures removes all injected failures.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns requests matching method and exact path (path includes /api/v1).
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// CountPrefix counts requests whose method matches and path starts with prefix.
func (s *Server) CountPrefix(method, prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded calls.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// ---------------------------------------------------------------------------
// Helpers used by handlers; callers hold no lock.

func (s *Server) currentUser(r *http.Request) (*userRecord, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	u, ok := s.users[id]
	return u, ok
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		if !u.IsAdmin {
			writeDetail(w, http.StatusForbidden, "无权限访问管理员功能")
			return
		}
		next(w, r)
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func paging(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return page, size
}

func slicePage[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return append([]T{}, items[start:end]...)
}

func (s *Server) appendLogLocked(actor, action, targetType string, targetID int64, desc string) {
	s.nextID++
	s.logs = append(s.logs, api.LogEntry{
		ID:                s.nextID,
		AdminPhone:        actor,
		ActionType:        action,
		TargetType:        targetType,
		TargetID:          api.FlexID(strconv.FormatInt(targetID, 10)),
		ActionDescription: desc,
		CreatedAt:         now(),
	})
}

// sortedUsers returns users ordered by id; caller holds mu.
func (s *Server) sortedUsersLocked() []api.User {
	out := make([]api.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
