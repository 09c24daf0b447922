package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/httpx"
)

const (
	DefaultTrendDays = 7
	MaxTrendDays     = 31
)

// PriceSource returns the raw price document of a query.
type PriceSource interface {
	Prices(ctx context.Context, q Query) (json.RawMessage, error)
}

type Handler struct {
	prices PriceSource
	trends *Trends
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(prices PriceSource, trends *Trends, logger *zap.Logger) *Handler {
	return &Handler{prices: prices, trends: trends, logger: logger, now: time.Now}
}

type pricesRequest struct {
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	ProductName string `json:"productName"`
}

// Prices proxies one price query. Without a start date the query starts
// three days back, since the site publishes with a delay.
func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if req.StartDate == "" {
		req.StartDate = h.now().AddDate(0, 0, -3).Format(DateLayout)
	}

	doc, err := h.prices.Prices(r.Context(), Query{Start: req.StartDate, End: req.EndDate, Product: req.ProductName})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

type trendsRequest struct {
	ProductName string      `json:"productName"`
	SpecInfo    string      `json:"specInfo"`
	Days        json.Number `json:"days"`
}

func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	var req trendsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	req.ProductName = strings.TrimSpace(req.ProductName)
	if req.ProductName == "" {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "productName is required"))
		return
	}
	days := DefaultTrendDays
	if req.Days != "" {
		n, err := req.Days.Int64()
		if err != nil || n < 1 || n > MaxTrendDays {
			httpx.WriteError(w, h.logger, apperr.New(apperr.Validation, "days must be between 1 and 31"))
			return
		}
		days = int(n)
	}

	trend, err := h.trends.Collect(r.Context(), req.ProductName, req.SpecInfo, days)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperr.Wrap(apperr.Timeout, "market trend aggregation timed out", err)
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, trend)
}
