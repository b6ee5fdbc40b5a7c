package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulgrammer/luminous/internal/executor"
	"github.com/paulgrammer/luminous/internal/synth"
	"github.com/paulgrammer/luminous/internal/webhook"
)

// FallbackPolicy decides what happens to a job whose render fails with a
// synthesis error.
type FallbackPolicy string

const (
	// FallbackFail marks the job failed with the synthesis error message.
	FallbackFail FallbackPolicy = "fail"
	// FallbackPlaceholder completes the job with the placeholder image and
	// flags it as a fallback.
	FallbackPlaceholder FallbackPolicy = "placeholder"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case "", FallbackFail:
		return FallbackFail, nil
	case FallbackPlaceholder:
		return FallbackPlaceholder, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q", s)
}

const DefaultQueueSize = 1024

// Manager runs wallpaper jobs on a fixed pool of workers fed by a bounded
// queue. Every submitted job keeps a handle until it reaches a terminal state.
type Manager struct {
	concurrency int
	queue       chan string
	slots       chan struct{}
	wg          sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	handlesMu sync.Mutex
	handles   map[string]chan struct{}

	store       Store
	runner      executor.Runner
	synth       *synth.Synthesizer
	sender      webhook.Sender
	streamer    *EventStreamer
	fallback    FallbackPolicy
	placeholder string
}

type ManagerOption func(*Manager)

func WithSender(sender webhook.Sender) ManagerOption {
	return func(m *Manager) { m.sender = sender }
}

func WithStreamer(streamer *EventStreamer) ManagerOption {
	return func(m *Manager) { m.streamer = streamer }
}

// WithSynthesizer sets the dimension limits requests are validated against.
func WithSynthesizer(s *synth.Synthesizer) ManagerOption {
	return func(m *Manager) { m.synth = s }
}

// WithFallback selects the fallback policy. placeholder is the result
// reference used by FallbackPlaceholder.
func WithFallback(policy FallbackPolicy, placeholder string) ManagerOption {
	return func(m *Manager) {
		m.fallback = policy
		m.placeholder = placeholder
	}
}

func NewManager(poolSize, queueSize int, store Store, runner executor.Runner, opts ...ManagerOption) (*Manager, error) {
	if poolSize <= 0 {
		return nil, errors.New("pool size must be > 0")
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	m := &Manager{
		concurrency: poolSize,
		queue:       make(chan string, queueSize),
		slots:       make(chan struct{}, queueSize),
		handles:     make(map[string]chan struct{}),
		store:       store,
		runner:      runner,
		synth:       synth.New(0, 0),
		fallback:    FallbackFail,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fallback == FallbackPlaceholder && m.placeholder == "" {
		return nil, errors.New("placeholder fallback requires a placeholder reference")
	}

	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for id := range m.queue {
				<-m.slots
				m.execute(id)
			}
		}()
	}
	return m, nil
}

// Stop refuses new work, lets the workers drain the queue and waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.queue)
	m.mu.Unlock()
	m.wg.Wait()
}

// Generate validates req, creates a pending job for it and schedules it. No
// job is created when validation fails or the queue is full.
func (m *Manager) Generate(ctx context.Context, req WallpaperRequest) (string, error) {
	if _, err := req.Params(m.synth); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return "", ErrManagerStopped
	}
	if !m.reserve() {
		JobsRejectedTotal.Inc()
		return "", ErrQueueFull
	}
	id, err := m.store.Create(req)
	if err != nil {
		<-m.slots
		return "", err
	}
	JobsKnown.Set(float64(m.store.Len()))
	m.track(id)
	m.enqueue(id)
	return id, nil
}

// Submit schedules an existing pending job and returns without waiting for it.
func (m *Manager) Submit(id string) error {
	job, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if job.Status != JobStatusPending {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, job.Status)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return ErrManagerStopped
	}
	if !m.track(id) {
		return fmt.Errorf("%w: job %s already submitted", ErrInvalidTransition, id)
	}
	if !m.reserve() {
		m.untrack(id)
		JobsRejectedTotal.Inc()
		return ErrQueueFull
	}
	m.enqueue(id)
	return nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	return m.store.Get(id)
}

// Result returns the image reference of a completed job.
func (m *Manager) Result(id string) (string, error) {
	job, err := m.store.Get(id)
	if err != nil {
		return "", err
	}
	if job.Status != JobStatusCompleted {
		return "", ErrNotReady
	}
	return job.Result, nil
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.handlesMu.Lock()
	done, ok := m.handles[id]
	m.handlesMu.Unlock()
	if !ok {
		return ErrNotFound
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve claims a queue slot without blocking. Callers hold m.mu.
func (m *Manager) reserve() bool {
	select {
	case m.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// track creates the job's handle. It reports false if one already exists.
func (m *Manager) track(id string) bool {
	m.handlesMu.Lock()
	defer m.handlesMu.Unlock()
	if _, ok := m.handles[id]; ok {
		return false
	}
	m.handles[id] = make(chan struct{})
	return true
}

func (m *Manager) untrack(id string) {
	m.handlesMu.Lock()
	delete(m.handles, id)
	m.handlesMu.Unlock()
}

// enqueue hands a tracked job to the workers. Callers hold m.mu and a slot.
func (m *Manager) enqueue(id string) {
	JobsQueuedTotal.Inc()
	m.queue <- id
}

func (m *Manager) execute(id string) {
	ctx := context.Background()
	defer m.release(id)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "job_id", id, "panic", r)
			m.fail(ctx, id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := m.store.Transition(id, JobStatusProcessing, Outcome{})
	if err != nil {
		slog.Warn("job not started", "job_id", id, "error", err)
		return
	}
	m.publish(ctx, job)
	JobsInProgress.Inc()
	defer JobsInProgress.Dec()

	var result *executor.ExecutionResult
	params, err := job.Request.Params(m.synth)
	if err != nil {
		err = &synth.SynthesisError{Style: job.Request.Style, Err: err}
	} else {
		result, err = m.runner.Run(ctx, id, params)
	}
	if result != nil {
		RenderDuration.Observe(result.Duration.Seconds())
	}
	if err != nil {
		var serr *synth.SynthesisError
		if errors.As(err, &serr) && m.fallback == FallbackPlaceholder {
			m.complete(ctx, id, Outcome{Result: m.placeholder, Fallback: true})
			JobsFallbackTotal.Inc()
			return
		}
		m.fail(ctx, id, err.Error())
		return
	}
	m.complete(ctx, id, Outcome{Result: result.Result})
}

func (m *Manager) complete(ctx context.Context, id string, out Outcome) {
	job, err := m.store.Transition(id, JobStatusCompleted, out)
	if err != nil {
		slog.Error("failed to complete job", "job_id", id, "error", err)
		return
	}
	JobsCompletedTotal.Inc()
	slog.Info("job completed", "job_id", id, "result", job.Result, "fallback", job.Fallback)
	m.publish(ctx, job)
}

func (m *Manager) fail(ctx context.Context, id, message string) {
	job, err := m.store.Transition(id, JobStatusFailed, Outcome{Message: message})
	if err != nil {
		slog.Error("failed to mark job failed", "job_id", id, "error", err)
		return
	}
	JobsFailedTotal.Inc()
	slog.Warn("job failed", "job_id", id, "message", message)
	m.publish(ctx, job)
}

func (m *Manager) release(id string) {
	if m.streamer != nil {
		m.streamer.Close(id)
	}
	m.handlesMu.Lock()
	if done, ok := m.handles[id]; ok {
		close(done)
	}
	m.handlesMu.Unlock()
}

// publish pushes a status change to websocket subscribers and the job's
// webhook. Webhook delivery is best effort.
func (m *Manager) publish(ctx context.Context, job Job) {
	if m.streamer != nil {
		m.streamer.Broadcast(job)
	}
	if m.sender == nil || job.Request.WebhookURL == "" {
		return
	}
	err := m.sender.Notify(ctx, job.Request.WebhookURL, webhook.Event{
		JobID:     job.ID,
		Status:    string(job.Status),
		Error:     job.Message,
		Timestamp: time.Now().UTC(),
		Data:      job,
	})
	if err != nil {
		slog.Warn("webhook delivery failed", "job_id", job.ID, "error", err)
	}
}
