package video

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-sun/software/internal/apperr"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "2024-05-01")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"b.mp4", "a.mp4", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("video:"+name), 0o644))
	}
	return NewLibrary(root, "http://localhost:5000/")
}

func TestLibraryList(t *testing.T) {
	l := newTestLibrary(t)

	videos, err := l.List("2024-05-01")
	require.NoError(t, err)
	require.Equal(t, []Video{
		{Filename: "a.mp4", URL: "http://localhost:5000/data/videos/2024-05-01/a.mp4"},
		{Filename: "b.mp4", URL: "http://localhost:5000/data/videos/2024-05-01/b.mp4"},
	}, videos)

	videos, err = l.List("2024-06-01")
	require.NoError(t, err)
	require.Empty(t, videos)

	videos, err = l.List("")
	require.NoError(t, err)
	require.NotNil(t, videos)

	_, err = l.List("../etc")
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestLibraryPath(t *testing.T) {
	l := newTestLibrary(t)

	p, err := l.Path("2024-05-01", "a.mp4")
	require.NoError(t, err)
	require.FileExists(t, p)

	_, err = l.Path("2024-05-01", "c.mp4")
	require.True(t, apperr.Is(err, apperr.NotFound))

	_, err = l.Path("2024-05-01", "..")
	require.True(t, apperr.Is(err, apperr.Validation))
}
