// Package scheduler runs the engine's periodic jobs.
//
// Interval jobs run on every tick. Window jobs check on every tick but
// only run inside a daily UTC window, at most once per MinGap; their last
// successful run is persisted so a restart inside the window does not
// repeat the day's work.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/metrics"
)

// DailyWindow is a time of day (UTC) a job may run around.
type DailyWindow struct {
	Hour      int
	Minute    int
	Tolerance time.Duration // ± around Hour:Minute
	MinGap    time.Duration // minimum time between successful runs
}

// Due reports whether a job last run at last may run at now.
func (w DailyWindow) Due(now, last time.Time) bool {
	now = now.UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), w.Hour, w.Minute, 0, 0, time.UTC)
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	if diff > w.Tolerance {
		return false
	}
	return last.IsZero() || now.Sub(last) >= w.MinGap
}

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration // how often the job is checked
	Window   *DailyWindow  // nil runs on every check
	Run      func(ctx context.Context) domain.SweepSummary
}

// CheckpointStore persists window jobs' last successful run.
type CheckpointStore interface {
	LastRun(ctx context.Context, job string) (time.Time, error)
	MarkRun(ctx context.Context, job string, t time.Time) error
}

// JobStatus is what the runner knows about one job.
type JobStatus struct {
	Name     string               `json:"name"`
	Interval string               `json:"interval"`
	Window   string               `json:"window,omitempty"`
	Runs     int                  `json:"runs"`
	Last     *domain.SweepSummary `json:"last,omitempty"`
}

// Runner drives jobs on tickers.
type Runner struct {
	store CheckpointStore
	jobs  map[string]Job
	order []string
	now   func() time.Time
	debug bool

	// locks serialize runs of one job, so a manual run and a scheduled
	// check never both pass the same checkpoint.
	locks map[string]*sync.Mutex

	mu   sync.RWMutex
	last map[string]domain.SweepSummary
	runs map[string]int
	wg   sync.WaitGroup
}

// NewRunner creates a runner. Job names must be unique and every job needs
// a positive interval.
func NewRunner(store CheckpointStore, jobs ...Job) (*Runner, error) {
	r := &Runner{
		store: store,
		jobs:  make(map[string]Job, len(jobs)),
		locks: make(map[string]*sync.Mutex, len(jobs)),
		now:   time.Now,
		last:  make(map[string]domain.SweepSummary),
		runs:  make(map[string]int),
	}
	for _, j := range jobs {
		if _, dup := r.jobs[j.Name]; dup {
			return nil, fmt.Errorf("scheduler: duplicate job %q", j.Name)
		}
		if j.Interval <= 0 || j.Run == nil {
			return nil, fmt.Errorf("scheduler: job %q needs an interval and a run func", j.Name)
		}
		if j.Window != nil && store == nil {
			return nil, fmt.Errorf("scheduler: window job %q needs a checkpoint store", j.Name)
		}
		r.jobs[j.Name] = j
		r.locks[j.Name] = &sync.Mutex{}
		r.order = append(r.order, j.Name)
	}
	return r, nil
}

// SetDebug logs per-item outcomes of every sweep.
func (r *Runner) SetDebug(on bool) { r.debug = on }

// Start launches one loop per job. Loops stop when ctx is cancelled; Wait
// blocks until they have.
func (r *Runner) Start(ctx context.Context) {
	for _, name := range r.order {
		job := r.jobs[name]
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loop(ctx, job)
		}()
	}
	log.Printf("[scheduler] started %d jobs", len(r.order))
}

// Wait blocks until every loop started by Start has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context, job Job) {
	r.check(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.check(ctx, job)
		}
	}
}

// check runs job if it is due.
func (r *Runner) check(ctx context.Context, job Job) {
	lock := r.locks[job.Name]
	lock.Lock()
	defer lock.Unlock()

	if job.Window == nil {
		r.execute(ctx, job)
		return
	}
	now := r.now()
	last, err := r.store.LastRun(ctx, job.Name)
	if err != nil {
		log.Printf("[scheduler] %s: read checkpoint: %v", job.Name, err)
		return
	}
	if !job.Window.Due(now, last) {
		return
	}
	sum := r.execute(ctx, job)
	if sum.Error != "" {
		return
	}
	if err := r.store.MarkRun(ctx, job.Name, now); err != nil {
		log.Printf("[scheduler] %s: write checkpoint: %v", job.Name, err)
	}
}

// RunNow executes a job immediately, ignoring its window. A window job's
// checkpoint is advanced so the scheduled run does not repeat the work.
func (r *Runner) RunNow(ctx context.Context, name string) (domain.SweepSummary, error) {
	job, ok := r.jobs[name]
	if !ok {
		return domain.SweepSummary{}, fmt.Errorf("%w: %s", domain.ErrUnknownJob, name)
	}
	lock := r.locks[name]
	lock.Lock()
	defer lock.Unlock()

	now := r.now()
	sum := r.execute(ctx, job)
	if job.Window != nil && sum.Error == "" {
		if err := r.store.MarkRun(ctx, job.Name, now); err != nil {
			return sum, fmt.Errorf("write checkpoint: %w", err)
		}
	}
	return sum, nil
}

func (r *Runner) execute(ctx context.Context, job Job) domain.SweepSummary {
	sum := job.Run(ctx)
	if sum.Job == "" {
		sum.Job = job.Name
	}
	r.record(sum)
	return sum
}

func (r *Runner) record(sum domain.SweepSummary) {
	r.mu.Lock()
	r.last[sum.Job] = sum
	r.runs[sum.Job]++
	r.mu.Unlock()

	metrics.SweepItems.WithLabelValues(sum.Job, string(domain.OutcomeOK)).Add(float64(sum.Succeeded))
	metrics.SweepItems.WithLabelValues(sum.Job, string(domain.OutcomeSkipped)).Add(float64(sum.Skipped))
	metrics.SweepItems.WithLabelValues(sum.Job, string(domain.OutcomeSoftFail)).Add(float64(sum.Failed))
	if !sum.FinishedAt.IsZero() {
		metrics.SweepDuration.WithLabelValues(sum.Job).Observe(sum.FinishedAt.Sub(sum.StartedAt).Seconds())
		metrics.SweepLastRun.WithLabelValues(sum.Job).Set(float64(sum.FinishedAt.Unix()))
	}

	switch {
	case sum.Error != "":
		log.Printf("[scheduler] %s failed: %s", sum.Job, sum.Error)
	case sum.Failed > 0:
		log.Printf("[scheduler] %s: %d ok, %d skipped, %d failed",
			sum.Job, sum.Succeeded, sum.Skipped, sum.Failed)
	}
	if r.debug {
		for _, f := range sum.Failures {
			log.Printf("[scheduler] %s item %s: %s %s", sum.Job, f.ID, f.Outcome, f.Reason)
		}
	}
}

// Statuses returns every job with its last summary, in registration order.
func (r *Runner) Statuses() []JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]JobStatus, 0, len(r.order))
	for _, name := range r.order {
		job := r.jobs[name]
		st := JobStatus{Name: name, Interval: job.Interval.String(), Runs: r.runs[name]}
		if job.Window != nil {
			st.Window = fmt.Sprintf("%02d:%02d UTC ±%s", job.Window.Hour, job.Window.Minute, job.Window.Tolerance)
		}
		if sum, ok := r.last[name]; ok {
			sum := sum
			st.Last = &sum
		}
		out = append(out, st)
	}
	return out
}

// LastSummary returns a job's most recent summary.
func (r *Runner) LastSummary(name string) (domain.SweepSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum, ok := r.last[name]
	return sum, ok
}

// Jobs returns the registered job names, sorted.
func (r *Runner) Jobs() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Stale returns interval jobs that have run before but not within factor
// intervals of now, and jobs whose last sweep failed outright.
func (r *Runner) Stale(now time.Time, factor int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		sum, ok := r.last[name]
		if !ok {
			continue
		}
		job := r.jobs[name]
		switch {
		case sum.Error != "":
			out = append(out, name+": "+sum.Error)
		case job.Window == nil && now.Sub(sum.FinishedAt) > time.Duration(factor)*job.Interval:
			out = append(out, name+": last run "+sum.FinishedAt.UTC().Format(time.RFC3339))
		}
	}
	return out
}
