package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPrices struct {
	got Query
}

func (s *stubPrices) Prices(ctx context.Context, q Query) (json.RawMessage, error) {
	s.got = q
	return json.RawMessage(`{"list":[]}`), nil
}

func newTestHandler() (*Handler, *stubPrices) {
	prices := &stubPrices{}
	tr := NewTrends(&fakeSource{}, 0, time.Minute, zap.NewNop())
	tr.now = fixedNow
	h := NewHandler(prices, tr, zap.NewNop())
	h.now = fixedNow
	return h, prices
}

func TestPricesDefaultStartDate(t *testing.T) {
	h, prices := newTestHandler()

	w := httptest.NewRecorder()
	h.Prices(w, httptest.NewRequest(http.MethodPost, "/api/market/prices", strings.NewReader(`{"productName":"鲫鱼"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"list":[]}`, w.Body.String())
	require.Equal(t, Query{Start: "2024/05/07", Product: "鲫鱼"}, prices.got)
}

func TestTrendsValidation(t *testing.T) {
	h, _ := newTestHandler()

	for _, body := range []string{`{}`, `{"productName":"  "}`, `{"productName":"草鱼","days":0}`, `{"productName":"草鱼","days":32}`, `{"productName":"草鱼","days":"x"}`} {
		w := httptest.NewRecorder()
		h.Trends(w, httptest.NewRequest(http.MethodPost, "/api/market/trends", strings.NewReader(body)))
		require.Equalf(t, http.StatusBadRequest, w.Code, "body %s", body)
	}

	w := httptest.NewRecorder()
	h.Trends(w, httptest.NewRequest(http.MethodPost, "/api/market/trends", strings.NewReader(`{"productName":"草鱼","days":"2"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var trend Trend
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trend))
	require.Len(t, trend.Current, 2)
	require.NotNil(t, trend.LastYear)
}
