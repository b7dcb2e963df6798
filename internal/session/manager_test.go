// ABOUTME: Tests for the session manager against the fake backend
// ABOUTME: Covers admin gating, restore, identity mismatch, logout and refresh

package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/apitest"
	"github.com/2389/edushare/internal/localstore"
	"github.com/2389/edushare/internal/validate"
)

const adminKey = "admin_token"

func setup(t *testing.T, authz Authorizer) (*apitest.Server, *api.Client, *localstore.MemoryStore, *Manager) {
	t.Helper()
	srv := apitest.New(t)
	client, err := api.NewClient(srv.BaseURL())
	require.NoError(t, err)
	kv := localstore.NewMemoryStore()
	return srv, client, kv, NewManager(client, kv, adminKey, authz)
}

func TestLogin_AdminPersistsToken(t *testing.T) {
	srv, client, kv, m := setup(t, AdminAuthorizer{Role: "admin"})
	id := srv.AddAdmin("secret1")
	ctx := context.Background()

	res, err := m.Login(ctx, apitest.AdminPhone, "secret1")
	require.NoError(t, err)

	assert.True(t, m.LoggedIn())
	assert.Equal(t, id, m.CurrentUser().ID)
	assert.Equal(t, res.AccessToken, m.Token())
	assert.Equal(t, res.AccessToken, client.Token())

	stored, err := kv.Get(ctx, adminKey)
	require.NoError(t, err)
	assert.Equal(t, res.AccessToken, stored)
}

func TestLogin_NonAdminStaysLoggedOut(t *testing.T) {
	srv, client, kv, m := setup(t, AdminAuthorizer{Role: "admin"})
	srv.AddAdmin("secret1")
	srv.AddUser(api.User{Phone: "13800000001", Nickname: "家长"}, "secret2")
	ctx := context.Background()

	_, err := m.Login(ctx, "13800000001", "secret2")
	require.ErrorIs(t, err, ErrNotAuthorized)

	assert.False(t, m.LoggedIn())
	assert.Nil(t, m.CurrentUser())
	assert.Empty(t, client.Token())

	_, err = kv.Get(ctx, adminKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestLogin_RoleClaimIsEnough(t *testing.T) {
	srv, _, _, m := setup(t, AdminAuthorizer{Role: "operator"})
	srv.AddUser(api.User{Phone: "13800000002", Role: "operator"}, "pw1234")

	_, err := m.Login(context.Background(), "13800000002", "pw1234")
	require.NoError(t, err)
	assert.True(t, m.LoggedIn())
}

func TestLogin_WrongPasswordSurfacesDetail(t *testing.T) {
	srv, _, _, m := setup(t, AllowAll)
	srv.AddAdmin("secret1")

	_, err := m.Login(context.Background(), apitest.AdminPhone, "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.StatusOf(err))
	assert.Equal(t, "手机号或密码错误", api.Message(err, "登录失败"))
	assert.False(t, m.LoggedIn())
}

func TestLogin_PortalAllowsAnyUser(t *testing.T) {
	srv, _, kv, m := setup(t, AllowAll)
	srv.AddUser(api.User{Phone: "13800000003"}, "pw1234")
	m.key = "token"

	_, err := m.Login(context.Background(), "13800000003", "pw1234")
	require.NoError(t, err)

	_, err = kv.Get(context.Background(), "token")
	assert.NoError(t, err)
}

func TestRestore_NoTokenMakesNoCalls(t *testing.T) {
	srv, _, _, m := setup(t, AllowAll)

	assert.False(t, m.Restore(context.Background()))
	assert.Empty(t, srv.Calls())
}

func TestRestore_ValidToken(t *testing.T) {
	srv, client, kv, m := setup(t, AdminAuthorizer{Role: "admin"})
	id := srv.AddAdmin("secret1")
	token := srv.IssueToken(id)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, adminKey, token))

	assert.True(t, m.Restore(ctx))
	assert.Equal(t, id, m.CurrentUser().ID)
	assert.Equal(t, token, client.Token())
}

func TestRestore_RejectedTokenIsCleared(t *testing.T) {
	_, client, kv, m := setup(t, AllowAll)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, adminKey, "stale"))

	assert.False(t, m.Restore(ctx))
	assert.Empty(t, client.Token())
	_, err := kv.Get(ctx, adminKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestRestore_IdentityMismatch(t *testing.T) {
	srv, _, kv, m := setup(t, AllowAll)
	admin := srv.AddAdmin("secret1")
	other := srv.AddUser(api.User{Phone: "13800000004"}, "pw1234")

	// A JWT naming one user but accepted by the server as another.
	token := srv.IssueToken(other)
	srv.MapToken(token, admin)

	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, adminKey, token))

	assert.False(t, m.Restore(ctx))
	assert.False(t, m.LoggedIn())
}

func TestRestore_NonAdminTokenRejected(t *testing.T) {
	srv, _, kv, m := setup(t, AdminAuthorizer{Role: "admin"})
	id := srv.AddUser(api.User{Phone: "13800000005"}, "pw1234")
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, adminKey, srv.IssueToken(id)))

	assert.False(t, m.Restore(ctx))
	_, err := kv.Get(ctx, adminKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestLogout_ClearsEverything(t *testing.T) {
	srv, client, kv, m := setup(t, AllowAll)
	srv.AddAdmin("secret1")
	ctx := context.Background()
	_, err := m.Login(ctx, apitest.AdminPhone, "secret1")
	require.NoError(t, err)

	m.Logout(ctx)

	assert.False(t, m.LoggedIn())
	assert.Empty(t, m.Token())
	assert.Empty(t, client.Token())
	_, err = kv.Get(ctx, adminKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestRefresh_PicksUpPoints(t *testing.T) {
	srv, _, _, m := setup(t, AllowAll)
	srv.AddUser(api.User{Phone: "13800000006", Points: 10}, "pw1234")
	ctx := context.Background()
	_, err := m.Login(ctx, "13800000006", "pw1234")
	require.NoError(t, err)
	id := m.CurrentUser().ID

	// Seeding a resource owned by someone else then downloading it costs points.
	rid := srv.AddResource(api.Resource{Title: "期末卷", IsActive: true, UploaderID: 1}, []byte("x"))
	client, err := api.NewClient(srv.BaseURL())
	require.NoError(t, err)
	client.SetToken(m.Token())
	_, err = client.Download(ctx, rid)
	require.NoError(t, err)

	u, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10-apitest.DownloadCost, u.Points)
	assert.Equal(t, id, m.CurrentUser().ID)
	assert.Equal(t, u.Points, m.CurrentUser().Points)
}

func TestRefresh_UnauthorizedEndsSession(t *testing.T) {
	srv, _, kv, m := setup(t, AllowAll)
	srv.AddAdmin("secret1")
	ctx := context.Background()
	_, err := m.Login(ctx, apitest.AdminPhone, "secret1")
	require.NoError(t, err)

	srv.Fail(http.MethodGet, "/api/v1/auth/me", http.StatusUnauthorized, "Token expired", 1)

	_, err = m.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.False(t, m.LoggedIn())
	_, err = kv.Get(ctx, adminKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestRefresh_RequiresSession(t *testing.T) {
	_, _, _, m := setup(t, AllowAll)
	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestExpiry(t *testing.T) {
	srv, _, _, m := setup(t, AllowAll)
	srv.AddAdmin("secret1")
	_, ok := m.Expiry()
	assert.False(t, ok)

	_, err := m.Login(context.Background(), apitest.AdminPhone, "secret1")
	require.NoError(t, err)
	exp, ok := m.Expiry()
	assert.True(t, ok)
	assert.False(t, exp.IsZero())
}

func TestCheckSubject(t *testing.T) {
	assert.NoError(t, checkSubject("opaque-token", 7))

	srv := apitest.New(t)
	token := srv.IssueToken(7)
	assert.NoError(t, checkSubject(token, 7))
	err := checkSubject(token, 8)
	assert.True(t, errors.Is(err, ErrIdentityMismatch))
}

func TestAdminAuthorizer(t *testing.T) {
	ctx := context.Background()
	a := AdminAuthorizer{Role: "admin"}
	assert.NoError(t, a.Authorize(ctx, &api.User{IsAdmin: true}))
	assert.NoError(t, a.Authorize(ctx, &api.User{Role: "admin"}))
	assert.ErrorIs(t, a.Authorize(ctx, &api.User{Role: "user"}), ErrNotAuthorized)
	assert.ErrorIs(t, a.Authorize(ctx, nil), ErrNotAuthorized)
	assert.ErrorIs(t, AdminAuthorizer{}.Authorize(ctx, &api.User{Role: ""}), ErrNotAuthorized)
}

func TestAdminAuthorizer_Check(t *testing.T) {
	ctx := context.Background()
	plain := &api.User{ID: 7, Phone: "13800000007"}

	calls := 0
	ok := AdminAuthorizer{Check: func(context.Context) error { calls++; return nil }}
	assert.NoError(t, ok.Authorize(ctx, plain))
	assert.NoError(t, ok.Authorize(ctx, &api.User{IsAdmin: true}))
	assert.Equal(t, 1, calls, "claims short-circuit the check")

	forbidden := AdminAuthorizer{Check: func(context.Context) error {
		return &api.Error{Status: http.StatusForbidden, Detail: "无权限访问管理员功能"}
	}}
	assert.ErrorIs(t, forbidden.Authorize(ctx, plain), ErrNotAuthorized)

	down := AdminAuthorizer{Check: func(context.Context) error {
		return &api.Error{Status: http.StatusInternalServerError}
	}}
	err := down.Authorize(ctx, plain)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, http.StatusInternalServerError, api.StatusOf(err))
}

func TestLogin_IdentityWithoutClaims(t *testing.T) {
	srv := apitest.New(t)
	client, err := api.NewClient(srv.BaseURL())
	require.NoError(t, err)
	kv := localstore.NewMemoryStore()
	m := NewManager(client, kv, adminKey, AdminAuthorizer{Role: "admin", Check: ConfigsCheck(client)})
	srv.PlainIdentity()
	srv.AddAdmin("secret1")
	srv.AddUser(api.User{Phone: "13800000008", Nickname: "老师"}, "secret2")
	ctx := context.Background()
	configsPath := "/api/v1/admin/configs"

	_, err = m.Login(ctx, apitest.AdminPhone, "secret1")
	require.NoError(t, err)
	assert.True(t, m.LoggedIn())
	assert.False(t, m.CurrentUser().IsAdmin)
	assert.Empty(t, m.CurrentUser().Role)
	assert.Len(t, srv.CallsTo(http.MethodGet, configsPath), 1)

	m.Logout(ctx)
	_, err = m.Login(ctx, "13800000008", "secret2")
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.False(t, m.LoggedIn())
	assert.Empty(t, client.Token())
	_, err = kv.Get(ctx, adminKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)

	srv.Fail(http.MethodGet, configsPath, http.StatusInternalServerError, "", 1)
	_, err = m.Login(ctx, apitest.AdminPhone, "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthorized)
	assert.False(t, m.LoggedIn())
}

func TestLogin_MalformedCredentialsStayLocal(t *testing.T) {
	srv, _, _, m := setup(t, AllowAll)

	_, err := m.Login(context.Background(), "12345", "")
	var verrs validate.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "phone")
	assert.Contains(t, verrs, "password")
	assert.Empty(t, srv.Calls())
}
