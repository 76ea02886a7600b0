package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/italolelis/mediafetch/internal/engine"
	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/plan"
	"github.com/italolelis/mediafetch/internal/storage"
	"github.com/italolelis/mediafetch/internal/tools"
)

// memRepo is an in-memory storage.JobRepository that records every status
// and progress write.
type memRepo struct {
	mu       sync.Mutex
	jobs     map[string]*job.Job
	statuses map[string][]job.Status
	progress map[string][]float64
	owners   map[string]string
	touched  map[string]time.Time
	beats    int
	order    []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		jobs:     map[string]*job.Job{},
		statuses: map[string][]job.Status{},
		progress: map[string][]float64{},
		owners:   map[string]string{},
		touched:  map[string]time.Time{},
	}
}

func (r *memRepo) Create(_ context.Context, spec job.Spec) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := &job.Job{ID: "job-" + strconv.Itoa(len(r.order)+1), Spec: spec, Status: job.StatusPending}
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)

	cp := *j

	return &cp, nil
}

// put stores j as-is, bypassing the lifecycle.
func (r *memRepo) put(j job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[j.ID]; !ok {
		r.order = append(r.order, j.ID)
	}

	r.jobs[j.ID] = &j
	r.touched[j.ID] = time.Now()
}

// putOwned stores j as claimed by owner and last updated age ago.
func (r *memRepo) putOwned(j job.Job, owner string, age time.Duration) {
	r.put(j)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.owners[j.ID] = owner
	r.touched[j.ID] = time.Now().Add(-age)
}

func (r *memRepo) Get(_ context.Context, id string) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *j

	return &cp, nil
}

func (r *memRepo) ListByStatus(_ context.Context, statuses ...job.Status) ([]*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*job.Job

	for _, id := range r.order {
		j := r.jobs[id]

		for _, s := range statuses {
			if j.Status == s {
				cp := *j
				out = append(out, &cp)
			}
		}
	}

	return out, nil
}

func (r *memRepo) Update(_ context.Context, id string, patch job.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}

	if j.Status.IsTerminal() {
		return storage.ErrTerminal
	}

	if patch.Status != nil {
		r.statuses[id] = append(r.statuses[id], *patch.Status)
	}

	if patch.Progress != nil {
		r.progress[id] = append(r.progress[id], *patch.Progress)
	}

	*j = patch.Apply(*j)
	r.touched[id] = time.Now()

	if j.Status.IsTerminal() {
		delete(r.owners, id)
	}

	return nil
}

func (r *memRepo) Claim(_ context.Context, id, instanceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return false, storage.ErrNotFound
	}

	if j.Status != job.StatusPending {
		return false, nil
	}

	j.Status = job.StatusDownloading
	r.statuses[id] = append(r.statuses[id], job.StatusDownloading)
	r.owners[id] = instanceID
	r.touched[id] = time.Now()

	return true, nil
}

func (r *memRepo) Heartbeat(_ context.Context, instanceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.beats++

	var n int64

	for id, owner := range r.owners {
		if owner == instanceID && r.jobs[id].Status.IsActive() {
			r.touched[id] = time.Now()
			n++
		}
	}

	return n, nil
}

func (r *memRepo) ExpireStale(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string

	for _, id := range r.order {
		j := r.jobs[id]
		if !j.Status.IsActive() || !r.touched[id].Before(cutoff) {
			continue
		}

		j.Status = job.StatusFailed
		r.statuses[id] = append(r.statuses[id], job.StatusFailed)
		r.touched[id] = time.Now()
		delete(r.owners, id)

		expired = append(expired, id)
	}

	return expired, nil
}

func (r *memRepo) heartbeats() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.beats
}

func (r *memRepo) history(id string) []job.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]job.Status(nil), r.statuses[id]...)
}

func (r *memRepo) progressWrites(id string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]float64(nil), r.progress[id]...)
}

type engineCall struct {
	url string
	cfg plan.Config
}

// scriptedEngine answers each invocation with the next step.
type scriptedEngine struct {
	mu    sync.Mutex
	steps []func(onProgress func(engine.Event)) (*engine.Result, error)
	calls []engineCall
}

func (e *scriptedEngine) ExtractAndDownload(
	_ context.Context, url string, cfg plan.Config, onProgress func(engine.Event),
) (*engine.Result, error) {
	e.mu.Lock()
	n := len(e.calls)
	e.calls = append(e.calls, engineCall{url: url, cfg: cfg})
	e.mu.Unlock()

	if n >= len(e.steps) {
		panic("unexpected engine invocation " + strconv.Itoa(n+1))
	}

	return e.steps[n](onProgress)
}

func (e *scriptedEngine) invocations() []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]engineCall(nil), e.calls...)
}

func returns(res *engine.Result, err error) func(func(engine.Event)) (*engine.Result, error) {
	return func(func(engine.Event)) (*engine.Result, error) {
		return res, err
	}
}

type staticTools tools.Toolset

func (s staticTools) Discover() tools.Toolset {
	return tools.Toolset(s)
}
