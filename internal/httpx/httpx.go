package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 1000
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto its status and writes {"ok":false,"error":...}.
// 5xx causes are logged; the client only sees the safe message.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind.Status() >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	WriteJSON(w, kind.Status(), map[string]any{
		"ok":    false,
		"error": apperr.Message(err),
	})
}

// DecodeJSON decodes the request body into v. An empty body is a
// validation error like any other malformed body.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.Validation, "request body is required")
		}
		return apperr.Wrap(apperr.Validation, "invalid request body", err)
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for bodies that may be absent. An
// empty body, including an empty chunked one, leaves v untouched.
func DecodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.Validation, "invalid request body", err)
	}
	return nil
}

// IDParam parses a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.Validation, "invalid "+name)
	}
	return id, nil
}

// Page is a 1-based page request.
type Page struct {
	Page    int
	PerPage int
}

func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }

// ParsePage reads page and per_page from the query string. Absent values
// take defaults; zero, negative or non-numeric values are rejected.
func ParsePage(r *http.Request) (Page, error) {
	p := Page{Page: DefaultPage, PerPage: DefaultPerPage}

	var err error
	if p.Page, err = positiveQuery(r, "page", DefaultPage); err != nil {
		return Page{}, err
	}
	if p.PerPage, err = positiveQuery(r, "per_page", DefaultPerPage); err != nil {
		return Page{}, err
	}
	if p.PerPage > MaxPerPage {
		return Page{}, apperr.New(apperr.Validation, "per_page must not exceed "+strconv.Itoa(MaxPerPage))
	}
	return p, nil
}

func positiveQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.New(apperr.Validation, name+" must be a positive integer")
	}
	return n, nil
}

// PageResult is the paginated list envelope the dashboard expects.
type PageResult[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
}
