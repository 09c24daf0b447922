package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/open-sun/software/internal/apperr"
)

// Forecast is the upstream document, passed through as decoded JSON.
type Forecast map[string]any

// Client calls the open-meteo forecast API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Current fetches current conditions and a five day precipitation
// forecast for a coordinate.
func (c *Client) Current(ctx context.Context, latitude, longitude float64) (Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m")
	q.Set("daily", "precipitation_sum")
	q.Set("forecast_days", "5")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "weather service unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "read weather response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.Upstream,
			fmt.Sprintf("failed to fetch weather data: %d, %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var f Forecast
	if err := dec.Decode(&f); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "weather service returned invalid JSON", err)
	}
	if f == nil {
		f = Forecast{}
	}
	Normalize(f)
	return f, nil
}

// Normalize fills in the keys the dashboard reads when the upstream
// omits them. Other keys are left alone.
func Normalize(f Forecast) {
	current, ok := f["current"].(map[string]any)
	if !ok {
		f["current"] = map[string]any{
			"temperature_2m":       0,
			"wind_speed_10m":       0,
			"relative_humidity_2m": 0,
			"precipitation":        0,
			"time":                 "",
		}
	} else if _, ok := current["precipitation"]; !ok {
		current["precipitation"] = 0
	}

	if _, ok := f["daily"]; !ok {
		f["daily"] = map[string]any{
			"time":              []any{},
			"precipitation_sum": []any{},
		}
	}
}
