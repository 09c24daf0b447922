package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/httpx"
)

const maxVideoSize = 512 << 20

// ResultStore reads stored analysis results.
type ResultStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
}

// Handler holds video HTTP handlers.
type Handler struct {
	library *Library
	tracker Tracker
	runner  *Runner
	results ResultStore
	logger  *zap.Logger
}

func NewHandler(library *Library, tracker Tracker, runner *Runner, results ResultStore, logger *zap.Logger) *Handler {
	return &Handler{library: library, tracker: tracker, runner: runner, results: results, logger: logger}
}

// List returns the clips recorded on ?date=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.library.List(r.URL.Query().Get("date"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

// Serve streams one recorded clip.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	p, err := h.library.Path(chi.URLParam(r, "date"), chi.URLParam(r, "filename"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, p)
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Validation, "multipart field 'file' is required", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Validation, "read upload", err)
	}
	if len(data) == 0 {
		return "", nil, apperr.New(apperr.Validation, "uploaded file is empty")
	}
	return filepath.Base(header.Filename), data, nil
}

// Analyze runs the tracker on the uploaded clip and responds with the
// annotated video.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	out, err := h.tracker.Track(r.Context(), name, data)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tracked_%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Write(out)
}

// SubmitJob queues a background analysis.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	job, err := h.runner.Submit(name, data)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("video job queued", zap.String("job_id", job.ID), zap.String("filename", name))
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"jobs": h.runner.List()})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}

// JobResult streams the annotated clip of a finished job.
func (h *Handler) JobResult(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if job.Status != StatusDone {
		httpx.WriteError(w, h.logger, apperr.New(apperr.Conflict, "video job is "+job.Status))
		return
	}

	body, size, _, err := h.results.Open(r.Context(), job.ResultKey)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tracked_%s"`, job.Filename))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream video result", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, job)
}
