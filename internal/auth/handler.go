package auth

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/httpx"
	"github.com/open-sun/software/internal/models"
)

// ExportPrefix is the object-store prefix of generated user exports.
const ExportPrefix = "exports/"

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPassword, role string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id int64, role string) error
	UpdatePassword(ctx context.Context, id int64, hashedPassword string) error
	DeleteUser(ctx context.Context, id int64) error
}

// Sessions is the session backend used by login, logout and RequireAuth.
type Sessions interface {
	Create(ctx context.Context, userID int64) (string, error)
	Get(ctx context.Context, sessionID string) (int64, error)
	Delete(ctx context.Context, sessionID string) error
}

// FileStore keeps generated export files.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions Sessions
	files    FileStore
	logger   *zap.Logger
}

func NewHandler(users UserStore, sessions Sessions, files FileStore, logger *zap.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, files: files, logger: logger}
}

// Register creates a new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "username and password are required"))
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if _, err := h.users.GetUserByUsername(r.Context(), req.Username); err == nil {
		httpx.WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "message": "username already exists"})
		return
	} else if !apperr.Is(err, apperr.NotFound) {
		httpx.WriteError(w, h.logger, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, h.logger, fmt.Errorf("hash password: %w", err))
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, string(hashed), req.Role)
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			httpx.WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "message": "username already exists"})
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "message": "registered", "user": user.Summary()})
}

// Login authenticates a user and creates a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "username does not exist"})
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "wrong password"})
		return
	}

	sid, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		httpx.WriteError(w, h.logger, fmt.Errorf("create session: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"message":  "login successful",
		"role":     user.Role,
		"username": user.Username,
	})
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("session delete failed", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "logged out"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Unauthorized, "not authenticated"))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user.Summary())
}

// ListUsers returns user summaries. Only plain users are listed unless
// ?role= names another role or "all".
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	switch role {
	case "":
		role = models.RoleUser
	case "all":
		role = ""
	}

	users, err := h.users.ListUsers(r.Context(), role)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// UpdateRole changes the role of one user.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req models.RoleUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "role is required"))
		return
	}

	if err := h.users.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("user %d role updated to %s", id, req.Role),
	})
}

// DeleteUser removes one user.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("user %d deleted", id),
	})
}

// ChangePassword replaces a password after checking the old one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if req.Username == "" || req.NewPassword == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "username and newPassword are required"))
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "message": "old password is incorrect"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, h.logger, fmt.Errorf("hash password: %w", err))
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, string(hashed)); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "password changed"})
}

// ExportUsers streams every user as CSV. A copy is kept in the file
// store under ExportPrefix until the janitor expires it.
func (h *Handler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), "")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Write([]string{"id", "username", "role"})
	for _, u := range users {
		cw.Write([]string{strconv.FormatInt(u.ID, 10), u.Username, u.Role})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		httpx.WriteError(w, h.logger, fmt.Errorf("encode users csv: %w", err))
		return
	}

	name := "users-" + uuid.New().String() + ".csv"
	if err := h.files.Upload(r.Context(), ExportPrefix+name, buf.Bytes(), "text/csv"); err != nil {
		h.logger.Warn("export copy not stored (non-fatal)", zap.String("name", name), zap.Error(err))
	} else {
		w.Header().Set("X-Export-URL", "/export/"+name)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=users.csv")
	w.Write(buf.Bytes())
}

// ServeExport streams a stored export until the janitor expires it.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "invalid export name"))
		return
	}

	body, size, contentType, err := h.files.Open(r.Context(), ExportPrefix+name)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream export", zap.String("name", name), zap.Error(err))
	}
}
