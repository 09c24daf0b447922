package water

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/httpx"
	"github.com/open-sun/software/internal/models"
)

// Store defines the water_quality_data persistence used by the CRUD routes.
type Store interface {
	ListWater(ctx context.Context, offset, limit int) ([]models.WaterQuality, error)
	CountWater(ctx context.Context) (int64, error)
	CreateWater(ctx context.Context, w *models.WaterQuality) (*models.WaterQuality, error)
	UpdateWater(ctx context.Context, id int64, w *models.WaterQuality) error
	DeleteWater(ctx context.Context, id int64) error
}

// DateSource returns the daily snapshot documents.
type DateSource interface {
	ByDate(date string) (json.RawMessage, error)
}

// Handler holds water quality HTTP handlers.
type Handler struct {
	dates  DateSource
	names  NameSource
	store  Store
	logger *zap.Logger
}

func NewHandler(dates DateSource, names NameSource, store Store, logger *zap.Logger) *Handler {
	return &Handler{dates: dates, names: names, store: store, logger: logger}
}

// ByDate serves the snapshot of one day.
func (h *Handler) ByDate(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "missing 'date' query parameter"))
		return
	}

	doc, err := h.dates.ByDate(date)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// ByName serves one site's table when basin and site are given, and a
// listing of the province (or basin) otherwise.
func (h *Handler) ByName(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	province := strings.TrimSpace(q.Get("province"))
	basin := strings.TrimSpace(q.Get("basin"))
	site := strings.TrimSpace(q.Get("site"))
	if province == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "missing query parameter: province"))
		return
	}

	if basin != "" && site != "" {
		table, err := h.names.Site(r.Context(), province, basin, site)
		if err != nil {
			httpx.WriteError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, table)
		return
	}

	listing, err := h.names.Province(r.Context(), province, basin)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listing)
}

// List returns one page of records with the total row count.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.ParsePage(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	rows, err := h.store.ListWater(r.Context(), page.Offset(), page.PerPage)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	total, err := h.store.CountWater(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if rows == nil {
		rows = []models.WaterQuality{}
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.PageResult[models.WaterQuality]{
		Data: rows, TotalCount: total, Page: page.Page, PerPage: page.PerPage,
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.WaterQuality
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := validate(&in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	created, err := h.store.CreateWater(r.Context(), &in)
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
	var in models.WaterQuality
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := validate(&in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.store.UpdateWater(r.Context(), id, &in); err != nil {
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
	if err := h.store.DeleteWater(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "record deleted"})
}

func validate(w *models.WaterQuality) error {
	if strings.TrimSpace(w.Province) == "" || strings.TrimSpace(w.SectionName) == "" {
		return apperr.New(apperr.Validation, "province and section_name are required")
	}
	return nil
}
