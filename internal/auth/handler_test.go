package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/models"
)

// mockUserStore is a map-backed UserStore.
type mockUserStore struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	lastID int64
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[int64]*models.User)}
}

func (m *mockUserStore) CreateUser(ctx context.Context, username, hashed, role string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return nil, apperr.New(apperr.Conflict, "username already exists")
		}
	}
	m.lastID++
	u := &models.User{ID: m.lastID, Username: username, Password: hashed, Role: role, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserStore) UpdateUserRole(ctx context.Context, id int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.New(apperr.NotFound, "user not found")
	}
	u.Role = role
	return nil
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id int64, hashed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.New(apperr.NotFound, "user not found")
	}
	u.Password = hashed
	return nil
}

func (m *mockUserStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperr.New(apperr.NotFound, "user not found")
	}
	delete(m.users, id)
	return nil
}

type mockSessions struct {
	sessions map[string]int64
	n        int
}

func (m *mockSessions) Create(ctx context.Context, userID int64) (string, error) {
	m.n++
	sid := fmt.Sprintf("sid-%d", m.n)
	m.sessions[sid] = userID
	return sid, nil
}

func (m *mockSessions) Get(ctx context.Context, sid string) (int64, error) {
	return m.sessions[sid], nil
}

func (m *mockSessions) Delete(ctx context.Context, sid string) error {
	delete(m.sessions, sid)
	return nil
}

type mockFiles struct {
	objects map[string][]byte
}

func (m *mockFiles) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	m.objects[key] = data
	return nil
}

func (m *mockFiles) Open(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, 0, "", apperr.New(apperr.NotFound, "object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), "text/csv", nil
}

type fixture struct {
	users    *mockUserStore
	sessions *mockSessions
	files    *mockFiles
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    newMockUserStore(),
		sessions: &mockSessions{sessions: map[string]int64{}},
		files:    &mockFiles{objects: map[string][]byte{}},
	}
	h := NewHandler(f.users, f.sessions, f.files, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)
	r.Get("/api/getusers", h.ListUsers)
	r.Put("/api/updateuserrole/{id}", h.UpdateRole)
	r.Delete("/api/deleteuser/{id}", h.DeleteUser)
	r.Post("/api/changepassword", h.ChangePassword)
	r.Get("/api/exportusers", h.ExportUsers)
	r.Get("/export/{name}", h.ServeExport)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/register", `{"username":"li","password":"pw1","role":"user"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, true, body["ok"])

	w, body = f.do(t, http.MethodPost, "/api/register", `{"username":"li","password":"other","role":"admin"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, false, body["ok"])
	require.Len(t, f.users.users, 1)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/register", `{"username":"","password":"pw"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, f.users.users)
}

func TestRegisterDefaultsRole(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/register", `{"username":"wang","password":"pw"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	u, err := f.users.GetUserByUsername(context.Background(), "wang")
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, u.Role)
	require.NotEqual(t, "pw", u.Password)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/register", `{"username":"zhao","password":"right","role":"admin"}`)

	w, body := f.do(t, http.MethodPost, "/api/login", `{"username":"zhao","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, false, body["ok"])
	require.Empty(t, f.sessions.sessions)

	w, body = f.do(t, http.MethodPost, "/api/login", `{"username":"nobody","password":"right"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, false, body["ok"])

	w, body = f.do(t, http.MethodPost, "/api/login", `{"username":"zhao","password":"right"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["ok"])
	require.Equal(t, "admin", body["role"])
	require.Len(t, f.sessions.sessions, 1)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, SessionCookie, cookies[0].Name)
}

func TestListUsersFiltersRole(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/register", `{"username":"a","password":"p","role":"user"}`)
	f.do(t, http.MethodPost, "/api/register", `{"username":"b","password":"p","role":"admin"}`)

	w, _ := f.do(t, http.MethodGet, "/api/getusers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	require.Equal(t, "a", users[0]["username"])
	require.NotContains(t, w.Body.String(), "password")

	w, _ = f.do(t, http.MethodGet, "/api/getusers?role=all", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
}

func TestUpdateRoleAndDelete(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/register", `{"username":"a","password":"p","role":"user"}`)

	w, body := f.do(t, http.MethodPut, "/api/updateuserrole/1", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "admin", f.users.users[1].Role)

	w, _ = f.do(t, http.MethodPut, "/api/updateuserrole/99", `{"role":"admin"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/updateuserrole/1", `{"role":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodDelete, "/api/deleteuser/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/deleteuser/1", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/deleteuser/abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/register", `{"username":"a","password":"old"}`)

	w, body := f.do(t, http.MethodPost, "/api/changepassword", `{"username":"a","oldPassword":"bad","newPassword":"new"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, false, body["ok"])

	w, _ = f.do(t, http.MethodPost, "/api/changepassword", `{"username":"ghost","oldPassword":"old","newPassword":"new"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, body = f.do(t, http.MethodPost, "/api/changepassword", `{"username":"a","oldPassword":"old","newPassword":"new"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["ok"])

	w, _ = f.do(t, http.MethodPost, "/api/login", `{"username":"a","password":"new"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportUsers(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/register", `{"username":"a","password":"p","role":"user"}`)
	f.do(t, http.MethodPost, "/api/register", `{"username":"b","password":"p","role":"admin"}`)

	w, _ := f.do(t, http.MethodGet, "/api/exportusers", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "id,username,role\n1,a,user\n2,b,admin\n", w.Body.String())

	url := w.Header().Get("X-Export-URL")
	require.True(t, strings.HasPrefix(url, "/export/users-"))
	name := strings.TrimPrefix(url, "/export/")
	require.Equal(t, w.Body.Bytes(), f.files.objects[ExportPrefix+name])

	served, _ := f.do(t, http.MethodGet, url, "")
	require.Equal(t, http.StatusOK, served.Code)
	require.Equal(t, "text/csv", served.Header().Get("Content-Type"))
	require.Equal(t, w.Body.String(), served.Body.String())

	delete(f.files.objects, ExportPrefix+name)
	gone, _ := f.do(t, http.MethodGet, url, "")
	require.Equal(t, http.StatusNotFound, gone.Code)
}
