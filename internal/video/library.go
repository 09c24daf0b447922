package video

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-sun/software/internal/apperr"
)

// Video is one recorded clip.
type Video struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Library lists and locates the recorded clips under root, one
// directory per date.
type Library struct {
	root    string
	baseURL string
}

// NewLibrary serves clips from root; URLs are built under baseURL.
func NewLibrary(root, baseURL string) *Library {
	return &Library{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func checkSegment(field, v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) || strings.Contains(v, "..") {
		return apperr.New(apperr.Validation, "invalid "+field)
	}
	return nil
}

// List returns the .mp4 files recorded on date sorted by name. An
// empty date or a date without recordings yields an empty list.
func (l *Library) List(date string) ([]Video, error) {
	videos := []Video{}
	if date == "" {
		return videos, nil
	}
	if err := checkSegment("date", date); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(l.root, date))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return videos, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		videos = append(videos, Video{
			Filename: e.Name(),
			URL:      l.baseURL + "/data/videos/" + url.PathEscape(date) + "/" + url.PathEscape(e.Name()),
		})
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Filename < videos[j].Filename })
	return videos, nil
}

// Path resolves a clip on disk. A missing file is NotFound.
func (l *Library) Path(date, filename string) (string, error) {
	if err := checkSegment("date", date); err != nil {
		return "", err
	}
	if err := checkSegment("filename", filename); err != nil {
		return "", err
	}
	p := filepath.Join(l.root, date, filename)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", apperr.New(apperr.NotFound, "video not found")
	}
	return p, nil
}
