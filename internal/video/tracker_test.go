package video

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-sun/software/internal/apperr"
)

func TestTrackerClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/track", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename == "bad.mp4" {
			http.Error(w, "missing class label", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(append([]byte("tracked:"), data...))
	}))
	defer srv.Close()

	c := NewTrackerClient(srv.URL + "/")

	out, err := c.Track(context.Background(), "pond.mp4", []byte("clip"))
	require.NoError(t, err)
	require.Equal(t, "tracked:clip", string(out))

	_, err = c.Track(context.Background(), "bad.mp4", []byte("clip"))
	require.True(t, apperr.Is(err, apperr.Upstream))
	require.Contains(t, apperr.Message(err), "missing class label")
}

func TestTrackerClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewTrackerClient(url).Track(context.Background(), "pond.mp4", []byte("clip"))
	require.True(t, apperr.Is(err, apperr.Upstream))
}
