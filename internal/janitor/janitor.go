// Package janitor runs periodic housekeeping on a cron schedule.
package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	ExportSchedule = "@every 10s"
	PruneSchedule  = "@every 10m"

	// JobRetention is how long finished video jobs stay in memory.
	JobRetention = time.Hour
)

// ObjectSweeper removes stored objects older than a given age.
type ObjectSweeper interface {
	RemoveOlderThan(ctx context.Context, prefix string, age time.Duration) (int, error)
}

// JobPruner forgets finished jobs older than a given age.
type JobPruner interface {
	Prune(age time.Duration) int
}

// Janitor expires generated exports and prunes finished video jobs.
type Janitor struct {
	objects      ObjectSweeper
	exportPrefix string
	exportTTL    time.Duration
	jobs         JobPruner
	logger       *zap.Logger
	cron         *cron.Cron
}

func New(objects ObjectSweeper, exportPrefix string, exportTTL time.Duration, jobs JobPruner, logger *zap.Logger) *Janitor {
	return &Janitor{
		objects:      objects,
		exportPrefix: exportPrefix,
		exportTTL:    exportTTL,
		jobs:         jobs,
		logger:       logger,
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the jobs and starts the scheduler.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(ExportSchedule, j.ExpireExports); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc(PruneSchedule, j.PruneJobs); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("janitor started", zap.Duration("export_ttl", j.exportTTL))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// ExpireExports deletes export objects older than the TTL.
func (j *Janitor) ExpireExports() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.objects.RemoveOlderThan(ctx, j.exportPrefix, j.exportTTL)
	if err != nil {
		j.logger.Warn("expire exports", zap.Error(err))
	}
	if n > 0 {
		j.logger.Info("exports expired", zap.Int("removed", n))
	}
}

// PruneJobs drops finished video jobs past retention.
func (j *Janitor) PruneJobs() {
	if n := j.jobs.Prune(JobRetention); n > 0 {
		j.logger.Info("video jobs pruned", zap.Int("removed", n))
	}
}
