package httpx

import (
	"net/http"
	"os"
)

// filesOnly hides directories so the file server never renders listings.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// StaticFiles serves regular files under root. Directories, including
// root itself, are 404.
func StaticFiles(root string) http.Handler {
	return http.FileServer(filesOnly{fs: http.Dir(root)})
}
