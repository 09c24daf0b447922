package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-sun/software/internal/apperr"
)

// newFakeSite mimics the price site: the price endpoint only answers
// requests carrying the cookie set by the landing page.
func newFakeSite(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/marketanalysis.html", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "guard", Value: "ok", Path: "/"})
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/getPriceData.html", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("guard"); err != nil || c.Value != "ok" {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "100", r.PostForm.Get("limit"))
		assert.Equal(t, "1190", r.PostForm.Get("prodPcatid"))
		assert.Equal(t, "", r.PostForm.Get("prodCatid"))
		if r.PostForm.Get("prodName") == "broken" {
			w.Write([]byte("<html>error</html>"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPricesSession(t *testing.T) {
	srv := newFakeSite(t, `{"count":1,"list":[{"prodName":"草鱼","avgPrice":"8.5","specInfo":"大"}]}`)
	c := NewClient(srv.URL)

	doc, err := c.Prices(context.Background(), Query{Start: "2024/05/01", Product: "草鱼"})
	require.NoError(t, err)
	require.JSONEq(t, `{"count":1,"list":[{"prodName":"草鱼","avgPrice":"8.5","specInfo":"大"}]}`, string(doc))

	items, err := c.Day(context.Background(), "2024/05/01", "草鱼")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "8.5", items[0]["avgPrice"])
}

func TestClientBadJSON(t *testing.T) {
	srv := newFakeSite(t, `{}`)

	_, err := NewClient(srv.URL).Prices(context.Background(), Query{Product: "broken"})
	require.True(t, apperr.Is(err, apperr.Upstream))
}
