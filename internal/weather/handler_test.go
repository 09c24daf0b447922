package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	lat, lon float64
}

func (s *stubSource) Current(ctx context.Context, lat, lon float64) (Forecast, error) {
	s.lat, s.lon = lat, lon
	f := Forecast{}
	Normalize(f)
	return f, nil
}

func TestCurrentValidation(t *testing.T) {
	src := &stubSource{}
	h := NewHandler(src, zap.NewNop())

	for _, q := range []string{"", "?latitude=30", "?latitude=abc&longitude=120", "?latitude=0&longitude=120"} {
		w := httptest.NewRecorder()
		h.Current(w, httptest.NewRequest(http.MethodGet, "/api/weather/current"+q, nil))
		require.Equalf(t, http.StatusBadRequest, w.Code, "query %q", q)
	}

	w := httptest.NewRecorder()
	h.Current(w, httptest.NewRequest(http.MethodGet, "/api/weather/current?latitude=30.25&longitude=-120.5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 30.25, src.lat)
	require.Equal(t, -120.5, src.lon)
	require.Contains(t, w.Body.String(), `"precipitation_sum":[]`)
}
