package video

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/models"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job stages while running.
const (
	StageUploading = "uploading"
	StageTracking  = "tracking"
	StageStoring   = "storing"
)

const (
	uploadPrefix = "videos/uploads/"
	resultPrefix = "videos/results/"
)

// Tracker produces an annotated clip from a recorded one.
type Tracker interface {
	Track(ctx context.Context, filename string, data []byte) ([]byte, error)
}

// ObjectStore keeps uploaded clips and analysis results.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// JobHistory persists job snapshots so finished jobs outlive the runner.
type JobHistory interface {
	SaveJob(ctx context.Context, job models.VideoJob) error
	GetJob(ctx context.Context, id string) (*models.VideoJob, error)
}

type job struct {
	state  models.VideoJob
	cancel context.CancelFunc
}

func finished(status string) bool {
	return status == StatusDone || status == StatusFailed || status == StatusCancelled
}

// Runner executes video analyses in the background, one goroutine per
// job, each bounded by a timeout.
type Runner struct {
	tracker Tracker
	objects ObjectStore
	history JobHistory
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*job
}

func NewRunner(tracker Tracker, objects ObjectStore, history JobHistory, timeout time.Duration, logger *zap.Logger) *Runner {
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		tracker: tracker,
		objects: objects,
		history: history,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		base:    base,
		stop:    stop,
		jobs:    make(map[string]*job),
	}
}

// Submit queues an analysis of data and returns its initial snapshot.
func (r *Runner) Submit(filename string, data []byte) (models.VideoJob, error) {
	if err := r.base.Err(); err != nil {
		return models.VideoJob{}, apperr.New(apperr.Internal, "video runner is shut down")
	}

	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	now := r.now()
	j := &job{
		state: models.VideoJob{
			ID:        uuid.NewString(),
			Filename:  filename,
			Status:    StatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.jobs[j.state.ID] = j
	snapshot := j.state
	r.mu.Unlock()
	r.persist(snapshot)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, j, data)
	}()
	return snapshot, nil
}

func (r *Runner) run(ctx context.Context, j *job, data []byte) {
	id := j.state.ID
	log := r.logger.With(zap.String("job_id", id))

	if !r.advance(j, StatusRunning, StageUploading) {
		return
	}
	if err := r.objects.Upload(ctx, uploadPrefix+id+".mp4", data, "video/mp4"); err != nil {
		r.fail(ctx, j, err, log)
		return
	}

	if !r.advance(j, StatusRunning, StageTracking) {
		return
	}
	out, err := r.tracker.Track(ctx, j.state.Filename, data)
	if err != nil {
		r.fail(ctx, j, err, log)
		return
	}

	if !r.advance(j, StatusRunning, StageStoring) {
		return
	}
	key := resultPrefix + id + ".mp4"
	if err := r.objects.Upload(ctx, key, out, "video/mp4"); err != nil {
		r.fail(ctx, j, err, log)
		return
	}

	r.mu.Lock()
	if finished(j.state.Status) {
		r.mu.Unlock()
		return
	}
	j.state.Status = StatusDone
	j.state.Stage = ""
	j.state.ResultKey = key
	j.state.UpdatedAt = r.now()
	snapshot := j.state
	r.mu.Unlock()

	log.Info("video job done", zap.Int("bytes", len(out)))
	r.persist(snapshot)
}

// advance moves a live job to the given status and stage. It reports
// false once the job has been cancelled.
func (r *Runner) advance(j *job, status, stage string) bool {
	r.mu.Lock()
	if finished(j.state.Status) {
		r.mu.Unlock()
		return false
	}
	j.state.Status = status
	j.state.Stage = stage
	j.state.UpdatedAt = r.now()
	snapshot := j.state
	r.mu.Unlock()

	r.persist(snapshot)
	return true
}

func (r *Runner) fail(ctx context.Context, j *job, err error, log *zap.Logger) {
	r.mu.Lock()
	if finished(j.state.Status) {
		r.mu.Unlock()
		return
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		j.state.Status = StatusFailed
		j.state.Error = "timed out after " + r.timeout.String()
	case errors.Is(ctx.Err(), context.Canceled):
		j.state.Status = StatusCancelled
		j.state.Error = "server shutting down"
	default:
		j.state.Status = StatusFailed
		j.state.Error = apperr.Message(err)
	}
	j.state.UpdatedAt = r.now()
	snapshot := j.state
	r.mu.Unlock()

	log.Warn("video job stopped", zap.String("status", snapshot.Status), zap.String("stage", snapshot.Stage), zap.Error(err))
	r.persist(snapshot)
}

// persist writes a snapshot to the history store. Failures only log;
// the in-memory state stays authoritative while the job is live.
func (r *Runner) persist(snapshot models.VideoJob) {
	if r.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.history.SaveJob(ctx, snapshot); err != nil {
		r.logger.Warn("persist video job", zap.String("job_id", snapshot.ID), zap.Error(err))
	}
}

// Get returns a job's snapshot, falling back to the history store for
// jobs that were pruned or ran in an earlier process.
func (r *Runner) Get(ctx context.Context, id string) (models.VideoJob, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	var snapshot models.VideoJob
	if ok {
		snapshot = j.state
	}
	r.mu.Unlock()
	if ok {
		return snapshot, nil
	}

	if r.history != nil {
		stored, err := r.history.GetJob(ctx, id)
		if err != nil {
			return models.VideoJob{}, err
		}
		return *stored, nil
	}
	return models.VideoJob{}, apperr.New(apperr.NotFound, "video job not found")
}

// List returns the jobs held in memory, newest first.
func (r *Runner) List() []models.VideoJob {
	r.mu.Lock()
	out := make([]models.VideoJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.state)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Cancel stops a live job. Cancelling a finished job returns it unchanged.
func (r *Runner) Cancel(id string) (models.VideoJob, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return models.VideoJob{}, apperr.New(apperr.NotFound, "video job not found")
	}
	if finished(j.state.Status) {
		snapshot := j.state
		r.mu.Unlock()
		return snapshot, nil
	}
	j.cancel()
	j.state.Status = StatusCancelled
	j.state.UpdatedAt = r.now()
	snapshot := j.state
	r.mu.Unlock()

	r.persist(snapshot)
	return snapshot, nil
}

// Prune forgets finished jobs last updated more than age ago and
// returns how many were dropped.
func (r *Runner) Prune(age time.Duration) int {
	cutoff := r.now().Add(-age)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if finished(j.state.Status) && j.state.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// Close cancels every live job and waits for their goroutines to exit.
func (r *Runner) Close() {
	r.stop()
	r.wg.Wait()
}
