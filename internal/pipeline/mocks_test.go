package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"optimus/internal/inference"
	"optimus/internal/models"
	"optimus/internal/store"
)

// mockInvoker returns scripted responses keyed by model name. A response of
// kind "error" fails the invocation; "sleep" simulates a slow model.
type mockInvoker struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	calls     []string // model names in invocation order
	delay     time.Duration
}

type mockResponse struct {
	raw string
	err error
}

func newMockInvoker() *mockInvoker {
	return &mockInvoker{responses: make(map[string]mockResponse)}
}

func (m *mockInvoker) respond(model, raw string) { m.responses[model] = mockResponse{raw: raw} }
func (m *mockInvoker) fail(model string, err error) { m.responses[model] = mockResponse{err: err} }

func (m *mockInvoker) Generate(ctx context.Context, model, prompt string, opts inference.GenerateOptions) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, model)
	resp, ok := m.responses[model]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no response scripted for model %q", model)
	}
	return resp.raw, resp.err
}

func (m *mockInvoker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockProducts is an in-memory ProductStore.
type mockProducts struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	updates  map[int64]map[string]any
	fetchErr map[int64]error
	updErr   map[int64]error
}

func newMockProducts(products ...*models.Product) *mockProducts {
	m := &mockProducts{
		products: make(map[int64]*models.Product),
		updates:  make(map[int64]map[string]any),
		fetchErr: make(map[int64]error),
		updErr:   make(map[int64]error),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProducts) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[id]; err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockProducts) GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProducts) ListProductIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := range m.products {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockProducts) UpdateProductFields(ctx context.Context, id int64, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updErr[id]; err != nil {
		return err
	}
	m.updates[id] = fields
	return nil
}

func (m *mockProducts) Ping(ctx context.Context) error { return nil }

func (m *mockProducts) updatedFields(id int64) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[id]
}

// mockChanges records appended change-log entries.
type mockChanges struct {
	mu      sync.Mutex
	entries []store.ChangeLogParams
}

func (m *mockChanges) AppendChange(ctx context.Context, params store.ChangeLogParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, params)
	return nil
}

func (m *mockChanges) ListChanges(ctx context.Context, productID int64, limit int) ([]*models.ChangeLogEntry, error) {
	return nil, nil
}

func (m *mockChanges) MarkReviewed(ctx context.Context, productID int64) error { return nil }

func (m *mockChanges) all() []store.ChangeLogParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.ChangeLogParams(nil), m.entries...)
}

// mockRuns is an in-memory RunStore tracking counter updates.
type mockRuns struct {
	mu           sync.Mutex
	runs         map[uuid.UUID]*models.PipelineRun
	counterCalls int
	counterSeq   []int // processed+failed per counter write, in write order
	completed    map[uuid.UUID]string // final status by run
}

func newMockRuns() *mockRuns {
	return &mockRuns{
		runs:      make(map[uuid.UUID]*models.PipelineRun),
		completed: make(map[uuid.UUID]string),
	}
}

func (m *mockRuns) CreateRun(ctx context.Context, runID uuid.UUID, taskTypes []models.TaskType, total int) (*models.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(taskTypes))
	for i, t := range taskTypes {
		names[i] = string(t)
	}
	run := &models.PipelineRun{
		ID:        int64(len(m.runs) + 1),
		RunID:     runID,
		TaskTypes: models.JoinTags(names),
		Total:     total,
		Status:    models.RunStatusPending,
	}
	m.runs[runID] = run
	return run, nil
}

func (m *mockRuns) GetRun(ctx context.Context, runID uuid.UUID) (*models.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (m *mockRuns) UpdateRunCounters(ctx context.Context, runID uuid.UUID, processed, failed int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counterCalls++
	m.counterSeq = append(m.counterSeq, processed+failed)
	if run, ok := m.runs[runID]; ok {
		run.Processed, run.Failed, run.Status = processed, failed, status
	}
	return nil
}

func (m *mockRuns) UpdateRunTotal(ctx context.Context, runID uuid.UUID, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	run.Total = total
	return nil
}

func (m *mockRuns) CompleteRun(ctx context.Context, runID uuid.UUID, processed, failed int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[runID] = status
	if run, ok := m.runs[runID]; ok {
		run.Processed, run.Failed, run.Status = processed, failed, status
	}
	return nil
}

func (m *mockRuns) ListRuns(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PipelineRun
	for _, run := range m.runs {
		out = append(out, run)
	}
	return out, nil
}

func (m *mockRuns) counterWrites() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.counterSeq...)
}

func (m *mockRuns) total(runID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		return run.Total
	}
	return -1
}

func (m *mockRuns) finalStatus(runID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed[runID]
}

func (m *mockRuns) created(runID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[runID]
	return ok
}

func (m *mockRuns) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// mockLister reports a fixed installed-model set.
type mockLister struct {
	models []string
	err    error
}

func (m *mockLister) ListModels(ctx context.Context) ([]string, error) {
	return m.models, m.err
}
