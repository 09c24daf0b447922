package weather

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/httpx"
)

// Source is the forecast backend.
type Source interface {
	Current(ctx context.Context, latitude, longitude float64) (Forecast, error)
}

type Handler struct {
	source Source
	logger *zap.Logger
}

func NewHandler(source Source, logger *zap.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

// Current proxies GET /api/weather/current?latitude=&longitude=.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	lat, okLat := coordinate(r, "latitude")
	lon, okLon := coordinate(r, "longitude")
	if !okLat || !okLon {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "latitude and longitude are required"))
		return
	}

	f, err := h.source.Current(r.Context(), lat, lon)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, f)
}

// coordinate rejects absent, non-numeric and zero values.
func coordinate(r *http.Request, name string) (float64, bool) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}
