package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"optimus/internal/broadcast"
	"optimus/internal/inference"
	"optimus/internal/models"
	"optimus/internal/store"
)

// RunState tracks the live counters of one run. The worker pool owns the
// writes; readers (progress snapshots, HTTP status, cancellation) go through
// the mutex. Total and the identity fields never change after creation.
type RunState struct {
	RunID     uuid.UUID
	TaskTypes []models.TaskType
	Total     int

	mu        sync.Mutex
	processed int
	failed    int
	status    string

	cancelOnce sync.Once
	cancelCh   chan struct{}

	// pubMu serializes the counter read with the ledger write in
	// Pool.publish so the persisted counters never move backwards.
	pubMu sync.Mutex
}

func NewRunState(runID uuid.UUID, taskTypes []models.TaskType, total int) *RunState {
	return &RunState{
		RunID:     runID,
		TaskTypes: taskTypes,
		Total:     total,
		status:    models.RunStatusPending,
		cancelCh:  make(chan struct{}),
	}
}

// Cancel requests cooperative cancellation: queued jobs stop being handed
// out, in-flight jobs run to completion. Safe to call more than once.
func (s *RunState) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

func (s *RunState) Cancelled() bool {
	select {
	case <-s.cancelCh:
		return true
	default:
		return false
	}
}

// record folds one outcome into the counters and returns the number of jobs
// finished so far.
func (s *RunState) record(out Outcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out.Success {
		s.processed++
	} else {
		s.failed++
	}
	return s.processed + s.failed
}

func (s *RunState) Counters() (processed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.failed
}

func (s *RunState) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *RunState) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Progress renders the state as the live-counter portion of a snapshot.
func (s *RunState) Progress() *broadcast.RunProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	taskNames := make([]string, len(s.TaskTypes))
	for i, t := range s.TaskTypes {
		taskNames[i] = string(t)
	}
	p := &broadcast.RunProgress{
		RunID:     s.RunID,
		TaskTypes: taskNames,
		Total:     s.Total,
		Processed: s.processed,
		Failed:    s.failed,
		Status:    s.status,
	}
	if s.Total > 0 {
		p.Percentage = float64(s.processed+s.failed) / float64(s.Total) * 100
	}
	return p
}

// Pool drives one run with a fixed number of workers pulling jobs from a
// shared channel. Progress is published every progressInterval completions
// and once more after the final job, and the run ledger row is updated on
// the same cadence.
type Pool struct {
	executor         *Executor
	runs             store.RunStore
	broadcaster      *broadcast.Broadcaster
	concurrency      int
	progressInterval int
	historyLimit     int
}

func NewPool(executor *Executor, runs store.RunStore, broadcaster *broadcast.Broadcaster, concurrency, progressInterval, historyLimit int) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	if progressInterval <= 0 {
		progressInterval = 5
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Pool{
		executor:         executor,
		runs:             runs,
		broadcaster:      broadcaster,
		concurrency:      concurrency,
		progressInterval: progressInterval,
		historyLimit:     historyLimit,
	}
}

// Run processes all jobs and blocks until the run reaches a terminal
// status. ctx is the process lifetime; run cancellation goes through
// state.Cancel so in-flight jobs finish while queued jobs are dropped.
// concurrency <= 0 uses the pool default.
func (p *Pool) Run(ctx context.Context, state *RunState, jobs []Job, avail *inference.Availability, concurrency int) error {
	if concurrency <= 0 {
		concurrency = p.concurrency
	}
	state.setStatus(models.RunStatusRunning)
	p.publish(ctx, state)

	jobCh := make(chan Job)
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case <-state.cancelCh:
				return
			case <-ctx.Done():
				return
			case jobCh <- job:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				outcome := p.executor.Execute(ctx, job, avail)
				if !outcome.Success {
					log.WithError(outcome.Err).WithFields(log.Fields{
						"run_id":     state.RunID,
						"product_id": job.ProductID,
						"task":       job.TaskType,
					}).Error("job failed")
				}
				count := state.record(outcome)
				if count%p.progressInterval == 0 || count == state.Total {
					p.publish(ctx, state)
				}
			}
		}()
	}
	wg.Wait()

	processed, failed := state.Counters()
	status := models.RunStatusCompleted
	switch {
	case state.Cancelled() || ctx.Err() != nil:
		status = models.RunStatusCancelled
	case failed > 0 && processed == 0:
		status = models.RunStatusFailed
	}
	state.setStatus(status)

	if err := p.runs.CompleteRun(ctx, state.RunID, processed, failed, status); err != nil {
		log.WithError(err).WithField("run_id", state.RunID).Error("failed to finalize run ledger")
	}
	p.publish(ctx, state)

	log.WithFields(log.Fields{
		"run_id":    state.RunID,
		"processed": processed,
		"failed":    failed,
		"status":    status,
	}).Info("pipeline run finished")
	return ctx.Err()
}

// publish pushes a progress snapshot to subscribers and mirrors the
// counters into the run ledger. Neither failure aborts the run.
func (p *Pool) publish(ctx context.Context, state *RunState) {
	state.pubMu.Lock()
	processed, failed := state.Counters()
	err := p.runs.UpdateRunCounters(ctx, state.RunID, processed, failed, state.Status())
	state.pubMu.Unlock()
	if err != nil {
		log.WithError(err).WithField("run_id", state.RunID).Warn("failed to update run counters")
	}

	recent, err := p.runs.ListRuns(ctx, p.historyLimit)
	if err != nil {
		log.WithError(err).Warn("failed to load recent runs for snapshot")
	}
	p.broadcaster.Publish(broadcast.Snapshot{
		Type:       broadcast.SnapshotTypeProgress,
		CurrentRun: state.Progress(),
		RecentRuns: recent,
	})
}
