package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/open-sun/software/internal/apperr"
)

// DateLayout is the date format the price site expects.
const DateLayout = "2006/01/02"

const (
	analysisPage = "/marketanalysis.html"
	priceData    = "/getPriceData.html"

	// aquaticCategory is the site's category id for aquatic products.
	aquaticCategory = "1190"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// Query selects price rows. Empty End means open ended.
type Query struct {
	Start   string
	End     string
	Product string
}

// Client queries the Xinfadi wholesale market price site. Every query
// runs in a fresh cookie session: the landing page sets the cookies
// the price endpoint checks.
type Client struct {
	baseURL string
	timeout time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: 30 * time.Second}
}

func (c *Client) session() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{Jar: jar, Timeout: c.timeout}, nil
}

// Prices returns the raw price document for q.
func (c *Client) Prices(ctx context.Context, q Query) (json.RawMessage, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}

	landing, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+analysisPage, nil)
	if err != nil {
		return nil, err
	}
	landing.Header.Set("User-Agent", userAgent)
	landing.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	landing.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	resp, err := hc.Do(landing)
	if err != nil {
		return nil, upstreamErr(ctx, "market landing page", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	form := url.Values{}
	form.Set("limit", "100")
	form.Set("current", "1")
	form.Set("pubDateStartTime", q.Start)
	form.Set("pubDateEndTime", q.End)
	form.Set("prodPcatid", aquaticCategory)
	form.Set("prodCatid", "")
	form.Set("prodName", q.Product)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+priceData, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+analysisPage)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err = hc.Do(req)
	if err != nil {
		return nil, upstreamErr(ctx, "market price query", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamErr(ctx, "read market response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.Upstream,
			fmt.Sprintf("failed to fetch market data: %d, %s", resp.StatusCode, truncate(string(body), 200)))
	}
	if !json.Valid(body) {
		return nil, apperr.New(apperr.Upstream, "market response is not JSON: "+truncate(string(body), 200))
	}
	return body, nil
}

// Day returns the price rows published on one date.
func (c *Client) Day(ctx context.Context, date, product string) ([]map[string]any, error) {
	raw, err := c.Prices(ctx, Query{Start: date, End: date, Product: product})
	if err != nil {
		return nil, err
	}
	var doc struct {
		List []map[string]any `json:"list"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "unexpected market response shape", err)
	}
	if doc.List == nil {
		doc.List = []map[string]any{}
	}
	return doc.List, nil
}

func upstreamErr(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return apperr.Wrap(apperr.Timeout, what+" cancelled", ctx.Err())
	}
	return apperr.Wrap(apperr.Upstream, what+" failed", err)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
