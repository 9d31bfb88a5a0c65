package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure JobOrchestrator implements the interface.
var _ driving.JobOrchestrator = (*JobOrchestrator)(nil)

// JobHandler runs one job attempt. report publishes progress in percent.
// The returned value is stored as the job result.
type JobHandler func(ctx context.Context, job *domain.Job, report func(percent int)) (any, error)

// JobOrchestrator runs jobs from a durable queue with a bounded worker pool.
type JobOrchestrator struct {
	store    driven.JobStore
	handlers map[domain.JobKind]JobHandler
	workers  int
	poll     time.Duration
	now      func() time.Time
	log      *logger.Logger

	hookMu      sync.RWMutex
	onProgress  []func(domain.Job, int)
	onCompleted []func(domain.Job)
	onFailed    []func(domain.Job, error, bool)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wake    chan struct{}
	wg      sync.WaitGroup
}

// NewJobOrchestrator creates an orchestrator. Zero workers or poll
// interval take the defaults.
func NewJobOrchestrator(store driven.JobStore, workers int, poll time.Duration) *JobOrchestrator {
	defaults := domain.DefaultAppSettings().Jobs
	if workers <= 0 {
		workers = defaults.Workers
	}
	if poll <= 0 {
		poll = defaults.PollInterval
	}
	return &JobOrchestrator{
		store:    store,
		handlers: make(map[domain.JobKind]JobHandler),
		workers:  workers,
		poll:     poll,
		now:      time.Now,
		log:      logger.For("jobs"),
		wake:     make(chan struct{}, 1),
	}
}

// Register installs the handler for a job kind.
func (o *JobOrchestrator) Register(kind domain.JobKind, handler JobHandler) {
	o.handlers[kind] = handler
}

// Enqueue stores a pending job. Zero option fields take the kind's defaults.
func (o *JobOrchestrator) Enqueue(
	ctx context.Context, kind domain.JobKind, payload any, opts domain.JobOptions,
) (string, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode payload: %w", domain.ErrInvalidInput, err)
	}

	defaults := domain.DefaultJobOptions(kind)
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = max(defaults.MaxAttempts, 1)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaults.Backoff
	}
	if opts.Priority == 0 {
		opts.Priority = defaults.Priority
	}

	now := o.now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     raw,
		Status:      domain.JobPending,
		MaxAttempts: opts.MaxAttempts,
		Backoff:     opts.Backoff,
		Priority:    opts.Priority,
		RunAt:       now.Add(max(opts.Delay, 0)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	o.log.Debug("queued %s job %s (priority %d)", kind, job.ID, job.Priority)

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return job.ID, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}

// Start runs the worker pool until ctx is cancelled or Stop is called.
// Jobs left running by a previous process are requeued first.
func (o *JobOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.stopCh = make(chan struct{})
	stopCh := o.stopCh
	o.wg.Add(o.workers)
	o.mu.Unlock()

	if n, err := o.store.RequeueRunning(ctx); err != nil {
		o.log.Warn("requeue interrupted jobs: %v", err)
	} else if n > 0 {
		o.log.Info("requeued %d interrupted jobs", n)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-workerCtx.Done():
		}
	}()

	o.log.Info("starting %d workers", o.workers)
	for i := 0; i < o.workers; i++ {
		go func() {
			defer o.wg.Done()
			o.work(workerCtx)
		}()
	}
	o.wg.Wait()

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Stop signals workers to exit and waits for them. A job interrupted
// mid-attempt is returned to the queue.
func (o *JobOrchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	select {
	case <-o.stopCh:
	default:
		close(o.stopCh)
	}
	o.mu.Unlock()

	o.wg.Wait()
	return nil
}

func (o *JobOrchestrator) work(ctx context.Context) {
	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	for {
		processed, err := o.runNext(ctx)
		if err != nil && ctx.Err() == nil {
			o.log.Warn("claim job: %v", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		case <-ticker.C:
		}
	}
}

// Drain processes due jobs synchronously until none remain.
// Returns the number of attempts made.
func (o *JobOrchestrator) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		processed, err := o.runNext(ctx)
		if err != nil {
			return n, err
		}
		if !processed {
			return n, nil
		}
		n++
	}
}

// runNext claims and runs one due job. Returns false when nothing was due.
func (o *JobOrchestrator) runNext(ctx context.Context) (bool, error) {
	job, err := o.store.ClaimNext(ctx, o.now().UTC())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	o.process(ctx, job)
	return true, nil
}

func (o *JobOrchestrator) process(ctx context.Context, job *domain.Job) {
	o.log.Debug("running %s job %s (attempt %d/%d)", job.Kind, job.ID, job.Attempts, job.MaxAttempts)

	handler, ok := o.handlers[job.Kind]
	if !ok {
		o.finish(ctx, job, nil, fmt.Errorf("%w: %s", domain.ErrUnknownJobKind, job.Kind))
		return
	}

	report := func(percent int) {
		percent = max(0, min(100, percent))
		if percent == job.Progress {
			return
		}
		job.Progress = percent
		job.UpdatedAt = o.now().UTC()
		if err := o.store.UpdateJob(ctx, job); err != nil {
			o.log.Debug("save progress of %s: %v", job.ID, err)
		}
		o.hookMu.RLock()
		hooks := o.onProgress
		o.hookMu.RUnlock()
		for _, fn := range hooks {
			fn(*job, percent)
		}
	}

	result, err := runHandler(ctx, handler, job, report)
	if err != nil && ctx.Err() != nil {
		o.requeue(context.WithoutCancel(ctx), job)
		return
	}
	o.finish(context.WithoutCancel(ctx), job, result, err)
}

// runHandler converts a handler panic into an error.
func runHandler(
	ctx context.Context, handler JobHandler, job *domain.Job, report func(int),
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job, report)
}

// requeue returns an attempt interrupted by shutdown to the queue without
// counting it.
func (o *JobOrchestrator) requeue(ctx context.Context, job *domain.Job) {
	job.Status = domain.JobPending
	job.Attempts = max(job.Attempts-1, 0)
	job.UpdatedAt = o.now().UTC()
	if err := o.store.UpdateJob(ctx, job); err != nil {
		o.log.Warn("requeue %s: %v", job.ID, err)
	}
}

func (o *JobOrchestrator) finish(ctx context.Context, job *domain.Job, result any, runErr error) {
	now := o.now().UTC()
	job.UpdatedAt = now

	if runErr == nil {
		job.Status = domain.JobCompleted
		job.Progress = 100
		job.LastError = ""
		job.FinishedAt = now
		if result != nil {
			raw, err := json.Marshal(result)
			if err != nil {
				o.log.Warn("encode result of %s: %v", job.ID, err)
			} else {
				job.Result = raw
			}
		}
		if err := o.store.UpdateJob(ctx, job); err != nil {
			o.log.Error("save job %s: %v", job.ID, err)
		}
		o.log.Info("%s job %s completed", job.Kind, job.ID)

		o.hookMu.RLock()
		hooks := o.onCompleted
		o.hookMu.RUnlock()
		for _, fn := range hooks {
			fn(*job)
		}
		return
	}

	job.LastError = runErr.Error()
	willRetry := job.CanRetry() && !isPermanent(runErr)
	if willRetry {
		job.Status = domain.JobPending
		job.RunAt = now.Add(job.RetryDelay())
		o.log.Warn("%s job %s failed (attempt %d/%d), retrying at %s: %v",
			job.Kind, job.ID, job.Attempts, job.MaxAttempts, job.RunAt.Format(time.RFC3339), runErr)
	} else {
		job.Status = domain.JobFailed
		job.FinishedAt = now
		o.log.Error("%s job %s failed: %v", job.Kind, job.ID, runErr)
	}
	if err := o.store.UpdateJob(ctx, job); err != nil {
		o.log.Error("save job %s: %v", job.ID, err)
	}

	o.hookMu.RLock()
	hooks := o.onFailed
	o.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(*job, runErr, willRetry)
	}
}

// isPermanent reports errors that no retry can fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrUnknownJobKind) || errors.Is(err, domain.ErrInvalidInput)
}

// Job retrieves a job by ID.
func (o *JobOrchestrator) Job(ctx context.Context, id string) (*domain.Job, error) {
	return o.store.GetJob(ctx, id)
}

// ListJobs returns jobs matching the filter.
func (o *JobOrchestrator) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	return o.store.ListJobs(ctx, filter)
}

// OnProgress registers a progress hook.
func (o *JobOrchestrator) OnProgress(fn func(job domain.Job, percent int)) {
	o.hookMu.Lock()
	defer o.hookMu.Unlock()
	o.onProgress = append(o.onProgress, fn)
}

// OnCompleted registers a completion hook.
func (o *JobOrchestrator) OnCompleted(fn func(job domain.Job)) {
	o.hookMu.Lock()
	defer o.hookMu.Unlock()
	o.onCompleted = append(o.onCompleted, fn)
}

// OnFailed registers a failure hook.
func (o *JobOrchestrator) OnFailed(fn func(job domain.Job, err error, willRetry bool)) {
	o.hookMu.Lock()
	defer o.hookMu.Unlock()
	o.onFailed = append(o.onFailed, fn)
}
