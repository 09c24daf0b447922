package fish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/httpx"
	"github.com/open-sun/software/internal/models"
)

const (
	// CacheKey names the uploaded dataset in the cache.
	CacheKey = "fish"

	maxUploadSize = 10 << 20
)

// Store defines the fish_data persistence used by the CRUD routes.
type Store interface {
	ListFish(ctx context.Context, offset, limit int) ([]models.Fish, error)
	CountFish(ctx context.Context) (int64, error)
	CreateFish(ctx context.Context, f *models.Fish) (*models.Fish, error)
	UpdateFish(ctx context.Context, id int64, f *models.Fish) error
	DeleteFish(ctx context.Context, id int64) error
}

// Handler holds fish data HTTP handlers.
type Handler struct {
	file   string
	cache  *Cache
	store  Store
	logger *zap.Logger
}

// NewHandler serves the dataset at file, overlaid by whatever was last
// uploaded into cache.
func NewHandler(file string, cache *Cache, store Store, logger *zap.Logger) *Handler {
	return &Handler{file: file, cache: cache, store: store, logger: logger}
}

type datasetResponse struct {
	Result    int                 `json:"result"`
	Total     int                 `json:"total"`
	Thead     []string            `json:"thead"`
	Tbody     []map[string]string `json:"tbody"`
	FromCache bool                `json:"from_cache"`
	CachedAt  *time.Time          `json:"cached_at,omitempty"`
}

func (h *Handler) readFile() (Dataset, error) {
	f, err := os.Open(h.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Dataset{}, apperr.New(apperr.NotFound, "Fish.csv does not exist")
		}
		return Dataset{}, fmt.Errorf("open fish dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("read fish dataset: %w", err)
	}
	return ds, nil
}

// current returns the cached upload if there is one, else the file.
func (h *Handler) current() (Dataset, bool, error) {
	if ds, ok := h.cache.Get(CacheKey); ok {
		return ds, true, nil
	}
	ds, err := h.readFile()
	return ds, false, err
}

// Get returns the active dataset.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ds, cached, err := h.current()
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	resp := datasetResponse{
		Result:    1,
		Total:     len(ds.Rows),
		Thead:     ds.Header,
		Tbody:     ds.Rows,
		FromCache: cached,
	}
	if cached {
		resp.CachedAt = &ds.CachedAt
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Upload replaces the cached dataset with the uploaded CSV.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Wrap(apperr.Validation, "multipart field 'file' is required", err))
		return
	}
	defer file.Close()

	ds, err := ReadCSV(file)
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Wrap(apperr.Validation, "invalid csv", err))
		return
	}
	if missing := MissingHeaders(ds.Header); len(missing) > 0 {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "missing required headers: "+strings.Join(missing, ", ")))
		return
	}

	cachedAt := h.cache.Put(CacheKey, ds)
	h.logger.Info("fish dataset cached", zap.Int("rows", len(ds.Rows)))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"result":    1,
		"message":   "dataset uploaded",
		"total":     len(ds.Rows),
		"cached_at": cachedAt,
	})
}

// Download returns the cached dataset as a CSV, or the original file.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if ds, ok := h.cache.Get(CacheKey); ok {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, ds); err != nil {
			httpx.WriteError(w, h.logger, fmt.Errorf("render cached dataset: %w", err))
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="fish_cache.csv"`)
		w.Write(buf.Bytes())
		return
	}

	if _, err := os.Stat(h.file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			httpx.WriteError(w, h.logger, apperr.New(apperr.NotFound, "Fish.csv does not exist"))
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="Fish.csv"`)
	http.ServeFile(w, r, h.file)
}

// Clear drops the cached upload.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear(CacheKey)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"result": 1, "message": "cache cleared"})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.ParsePage(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	rows, err := h.store.ListFish(r.Context(), page.Offset(), page.PerPage)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	total, err := h.store.CountFish(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if rows == nil {
		rows = []models.Fish{}
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.PageResult[models.Fish]{
		Data: rows, TotalCount: total, Page: page.Page, PerPage: page.PerPage,
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.Fish
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := validate(&in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	created, err := h.store.CreateFish(r.Context(), &in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "record added", "data": created})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var in models.Fish
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := validate(&in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.store.UpdateFish(r.Context(), id, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	in.ID = id
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "record updated", "data": in})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.store.DeleteFish(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "record deleted"})
}

func validate(f *models.Fish) error {
	f.Species = strings.TrimSpace(f.Species)
	if f.Species == "" || !f.Weight.Valid {
		return apperr.New(apperr.Validation, "species and weight are required")
	}
	return nil
}
