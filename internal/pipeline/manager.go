package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"optimus/internal/inference"
	"optimus/internal/models"
	"optimus/internal/registry"
	"optimus/internal/store"
	"optimus/internal/taxonomy"
)

// ErrRunNotActive is returned when a cancel targets a run this process is
// not currently executing.
var ErrRunNotActive = errors.New("pipeline: run not active")

// StartOptions describes a requested run before it is turned into jobs.
type StartOptions struct {
	TaskTypes   []models.TaskType
	ProductIDs  []int64
	All         bool
	Concurrency int
	DryRun      bool
}

// Manager owns the lifecycle of pipeline runs: request validation, job
// construction, the ledger row, dispatch (inline or through the queue), and
// the registry of active runs for cancellation and status. All state lives
// on the Manager; there are no package-level run registries.
type Manager struct {
	mu     sync.RWMutex
	active map[uuid.UUID]*RunState

	baseCtx  context.Context
	pool     *Pool
	products store.ProductStore
	runs     store.RunStore
	registry *registry.Registry
	lister   inference.ModelLister
	tax      *taxonomy.Taxonomy
	queue    store.JobClient // nil means runs execute in-process
}

type ManagerParams struct {
	BaseCtx  context.Context // process lifetime for detached runs
	Pool     *Pool
	Products store.ProductStore
	Runs     store.RunStore
	Registry *registry.Registry
	Lister   inference.ModelLister
	Taxonomy *taxonomy.Taxonomy
	Queue    store.JobClient
}

func NewManager(p ManagerParams) *Manager {
	if p.BaseCtx == nil {
		p.BaseCtx = context.Background()
	}
	return &Manager{
		active:   make(map[uuid.UUID]*RunState),
		baseCtx:  p.BaseCtx,
		pool:     p.Pool,
		products: p.Products,
		runs:     p.Runs,
		registry: p.Registry,
		lister:   p.Lister,
		tax:      p.Taxonomy,
		queue:    p.Queue,
	}
}

// prepare validates the request and expands it into one job per
// (product, task) pair, products outer so each product's tasks land close
// together in the queue. All configuration errors surface here, before any
// ledger write or model call.
func (m *Manager) prepare(ctx context.Context, opts StartOptions) ([]Job, error) {
	if len(opts.TaskTypes) == 0 {
		return nil, fmt.Errorf("at least one task type is required")
	}
	seen := make(map[models.TaskType]bool, len(opts.TaskTypes))
	for _, task := range opts.TaskTypes {
		if seen[task] {
			return nil, fmt.Errorf("duplicate task type %q", task)
		}
		seen[task] = true
		if _, err := m.registry.ChainFor(task); err != nil {
			return nil, err
		}
		if task == models.TaskCategoryNormalization && (m.tax == nil || m.tax.Len() == 0) {
			return nil, fmt.Errorf("category_normalization requires a loaded taxonomy")
		}
	}

	var ids []int64
	switch {
	case opts.All:
		var err error
		ids, err = m.products.ListProductIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
	case len(opts.ProductIDs) > 0:
		found, err := m.products.GetProductsByIDs(ctx, opts.ProductIDs)
		if err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		if len(found) != len(opts.ProductIDs) {
			return nil, fmt.Errorf("%d of %d requested products not found", len(opts.ProductIDs)-len(found), len(opts.ProductIDs))
		}
		for _, p := range found {
			ids = append(ids, p.ID)
		}
	default:
		return nil, fmt.Errorf("either product IDs or --all is required")
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no products to process")
	}

	jobs := make([]Job, 0, len(ids)*len(opts.TaskTypes))
	for _, id := range ids {
		for _, task := range opts.TaskTypes {
			jobs = append(jobs, Job{ProductID: id, TaskType: task})
		}
	}
	return jobs, nil
}

// Start validates and launches a run, returning its ID and job count. With
// DryRun set, only the count is returned: no ledger row, no queue message,
// no model call. Otherwise the ledger row is created and the run is handed
// to the queue when one is configured, or executed on a detached goroutine.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (uuid.UUID, int, error) {
	jobs, err := m.prepare(ctx, opts)
	if err != nil {
		return uuid.Nil, 0, err
	}
	if opts.DryRun {
		return uuid.Nil, len(jobs), nil
	}

	runID := uuid.New()
	if _, err := m.runs.CreateRun(ctx, runID, opts.TaskTypes, len(jobs)); err != nil {
		return uuid.Nil, 0, fmt.Errorf("create run ledger entry: %w", err)
	}

	if m.queue != nil {
		req := store.RunRequest{
			RunID:       runID,
			TaskTypes:   opts.TaskTypes,
			ProductIDs:  opts.ProductIDs,
			All:         opts.All,
			Concurrency: opts.Concurrency,
		}
		if err := m.queue.EnqueuePipelineRun(ctx, req); err != nil {
			return uuid.Nil, 0, fmt.Errorf("enqueue run: %w", err)
		}
		log.WithFields(log.Fields{"run_id": runID, "jobs": len(jobs)}).Info("pipeline run enqueued")
		return runID, len(jobs), nil
	}

	go func() {
		if err := m.execute(m.baseCtx, runID, opts, jobs); err != nil {
			log.WithError(err).WithField("run_id", runID).Error("pipeline run aborted")
		}
	}()
	return runID, len(jobs), nil
}

// RunSync validates and executes a run on the calling goroutine, blocking
// until it reaches a terminal status. Used by the CLI.
func (m *Manager) RunSync(ctx context.Context, opts StartOptions) (uuid.UUID, error) {
	jobs, err := m.prepare(ctx, opts)
	if err != nil {
		return uuid.Nil, err
	}
	runID := uuid.New()
	if _, err := m.runs.CreateRun(ctx, runID, opts.TaskTypes, len(jobs)); err != nil {
		return uuid.Nil, fmt.Errorf("create run ledger entry: %w", err)
	}
	return runID, m.execute(ctx, runID, opts, jobs)
}

// ExecuteRequest runs a queued request to completion. The ledger row was
// created when the run was submitted; if the queue delivered a request this
// process has no row for, one is created so counters have somewhere to go.
func (m *Manager) ExecuteRequest(ctx context.Context, req store.RunRequest) error {
	opts := StartOptions{
		TaskTypes:   req.TaskTypes,
		ProductIDs:  req.ProductIDs,
		All:         req.All,
		Concurrency: req.Concurrency,
	}
	jobs, err := m.prepare(ctx, opts)
	if err != nil {
		return err
	}
	run, err := m.runs.GetRun(ctx, req.RunID)
	switch {
	case err == nil:
		// An All request is re-expanded here, so the catalog may have
		// grown or shrunk since submit; the row's total must match the
		// jobs actually dispatched or the counters can overrun it.
		if run.Total != len(jobs) {
			if err := m.runs.UpdateRunTotal(ctx, req.RunID, len(jobs)); err != nil {
				return fmt.Errorf("update run total: %w", err)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		if _, err := m.runs.CreateRun(ctx, req.RunID, opts.TaskTypes, len(jobs)); err != nil {
			return fmt.Errorf("create run ledger entry: %w", err)
		}
	default:
		return fmt.Errorf("load run %s: %w", req.RunID, err)
	}
	return m.execute(ctx, req.RunID, opts, jobs)
}

func (m *Manager) execute(ctx context.Context, runID uuid.UUID, opts StartOptions, jobs []Job) error {
	state := NewRunState(runID, opts.TaskTypes, len(jobs))

	m.mu.Lock()
	m.active[runID] = state
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.active, runID)
		m.mu.Unlock()
	}()

	// One availability snapshot per run; workers read it without locking.
	avail := inference.Snapshot(ctx, m.lister)

	log.WithFields(log.Fields{
		"run_id": runID,
		"jobs":   len(jobs),
		"tasks":  opts.TaskTypes,
	}).Info("pipeline run starting")
	return m.pool.Run(ctx, state, jobs, avail, opts.Concurrency)
}

// Cancel requests cooperative cancellation of an active run. Runs executing
// in another process cannot be reached from here.
func (m *Manager) Cancel(runID uuid.UUID) error {
	m.mu.RLock()
	state, ok := m.active[runID]
	m.mu.RUnlock()
	if !ok {
		return ErrRunNotActive
	}
	state.Cancel()
	log.WithField("run_id", runID).Info("pipeline run cancellation requested")
	return nil
}

// Active returns the live state of a run this process is executing.
func (m *Manager) Active(runID uuid.UUID) (*RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.active[runID]
	return state, ok
}

// ActiveCount reports how many runs this process is executing.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
