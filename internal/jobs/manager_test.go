package jobs

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulgrammer/luminous/internal/executor"
	"github.com/paulgrammer/luminous/internal/storage"
	"github.com/paulgrammer/luminous/internal/synth"
	"github.com/paulgrammer/luminous/internal/webhook"
)

type runnerFunc func(ctx context.Context, jobID string, params synth.Params) (*executor.ExecutionResult, error)

func (f runnerFunc) Run(ctx context.Context, jobID string, params synth.Params) (*executor.ExecutionResult, error) {
	return f(ctx, jobID, params)
}

func okRunner(ctx context.Context, jobID string, params synth.Params) (*executor.ExecutionResult, error) {
	return &executor.ExecutionResult{JobID: jobID, Result: "/static/previews/" + jobID + ".png"}, nil
}

func waitJob(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx, id); err != nil {
		t.Fatalf("wait %s: %v", id, err)
	}
	job, err := m.Get(id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return job
}

func newTestManager(t *testing.T, pool, queue int, runner executor.Runner, opts ...ManagerOption) (*Manager, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	m, err := NewManager(pool, queue, store, runner, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, store
}

func TestNewManager_InvalidConfig(t *testing.T) {
	if _, err := NewManager(0, 1, NewInMemoryStore(), runnerFunc(okRunner)); err == nil {
		t.Fatalf("expected error for empty pool")
	}
	if _, err := NewManager(1, 1, NewInMemoryStore(), runnerFunc(okRunner), WithFallback(FallbackPlaceholder, "")); err == nil {
		t.Fatalf("expected error for placeholder policy without reference")
	}
}

func TestManager_GenerateRendersRequestedResolution(t *testing.T) {
	previews, err := storage.NewPreviewStore(filepath.Join(t.TempDir(), "previews"), "/static/previews")
	if err != nil {
		t.Fatalf("preview store: %v", err)
	}
	s := synth.New(0, 0)
	m, _ := newTestManager(t, 2, 8, executor.NewRenderRunner(s, previews), WithSynthesizer(s))

	req := sampleRequest()
	req.Resolution = "100x50"
	id, err := m.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	job := waitJob(t, m, id)
	if job.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Message)
	}
	ref, err := m.Result(id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	path, found := previews.Resolve(ref)
	if !found {
		t.Fatalf("result %q does not resolve", ref)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("expected 100x50, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestManager_GenerateValidatesEagerly(t *testing.T) {
	m, store := newTestManager(t, 1, 4, runnerFunc(okRunner), WithSynthesizer(synth.New(500, 500)))

	tests := []struct {
		name  string
		req   WallpaperRequest
		field string
	}{
		{"bad color", WallpaperRequest{Color: "nope", Resolution: "10x10"}, "color"},
		{"bad resolution", WallpaperRequest{Color: "red", Resolution: "10by10"}, "resolution"},
		{"non-positive", WallpaperRequest{Color: "red", Resolution: "0x10"}, "resolution"},
		{"too large", WallpaperRequest{Color: "red", Resolution: "501x10"}, "resolution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Generate(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
	if store.Len() != 0 {
		t.Fatalf("no job may be created for invalid requests, got %d", store.Len())
	}
}

func TestManager_SynthesisFailureMarksJobFailed(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, jobID string, p synth.Params) (*executor.ExecutionResult, error) {
		return &executor.ExecutionResult{JobID: jobID}, &synth.SynthesisError{Style: string(p.Style), Err: errors.New("canvas exploded")}
	})
	m, _ := newTestManager(t, 1, 4, runner)

	id, err := m.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	job := waitJob(t, m, id)
	if job.Status != JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Message == "" || job.Result != "" {
		t.Fatalf("failed job must carry only a message: %+v", job)
	}
	if _, err := m.Result(id); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestManager_PlaceholderFallback(t *testing.T) {
	synthErr := runnerFunc(func(ctx context.Context, jobID string, p synth.Params) (*executor.ExecutionResult, error) {
		return nil, &synth.SynthesisError{Err: errors.New("bad")}
	})
	m, _ := newTestManager(t, 1, 4, synthErr, WithFallback(FallbackPlaceholder, "/static/previews/default.png"))

	id, err := m.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	job := waitJob(t, m, id)
	if job.Status != JobStatusCompleted || !job.Fallback || job.Result != "/static/previews/default.png" {
		t.Fatalf("expected placeholder completion, got %+v", job)
	}

	storageErr := runnerFunc(func(ctx context.Context, jobID string, p synth.Params) (*executor.ExecutionResult, error) {
		return nil, errors.New("disk full")
	})
	m2, _ := newTestManager(t, 1, 4, storageErr, WithFallback(FallbackPlaceholder, "/static/previews/default.png"))
	id, err = m2.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	job = waitJob(t, m2, id)
	if job.Status != JobStatusFailed || job.Fallback {
		t.Fatalf("non-synthesis errors must fail the job, got %+v", job)
	}
}

func TestManager_PanicIsIsolated(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, jobID string, p synth.Params) (*executor.ExecutionResult, error) {
		if p.Color == "red" {
			panic("renderer bug")
		}
		return okRunner(ctx, jobID, p)
	})
	m, _ := newTestManager(t, 1, 4, runner)

	bad := sampleRequest()
	bad.Color = "red"
	badID, err := m.Generate(context.Background(), bad)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	goodID, err := m.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if job := waitJob(t, m, badID); job.Status != JobStatusFailed {
		t.Fatalf("expected panicking job to fail, got %s", job.Status)
	}
	if job := waitJob(t, m, goodID); job.Status != JobStatusCompleted {
		t.Fatalf("expected other job to complete, got %s", job.Status)
	}
}

func TestManager_QueueFull(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, jobID string, p synth.Params) (*executor.ExecutionResult, error) {
		started <- struct{}{}
		<-release
		return okRunner(ctx, jobID, p)
	})
	m, store := newTestManager(t, 1, 1, runner)
	defer close(release)

	first, err := m.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	<-started
	if _, err := m.Generate(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("second job should be queued: %v", err)
	}
	if _, err := m.Generate(context.Background(), sampleRequest()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("rejected request must not create a job, store has %d", store.Len())
	}

	job, _ := m.Get(first)
	if job.Status != JobStatusProcessing {
		t.Fatalf("expected first job processing, got %s", job.Status)
	}
	if _, err := m.Result(first); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestManager_Submit(t *testing.T) {
	m, store := newTestManager(t, 1, 4, runnerFunc(okRunner))

	if err := m.Submit("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	id, err := store.Create(sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Submit(id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job := waitJob(t, m, id); job.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if err := m.Submit(id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected resubmit to be rejected, got %v", err)
	}
}

func TestManager_ConcurrentGenerate(t *testing.T) {
	m, _ := newTestManager(t, 4, 64, runnerFunc(okRunner))

	const n = 32
	type submitted struct {
		id    string
		color string
	}
	out := make(chan submitted, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := sampleRequest()
			req.Color = fmt.Sprintf("rgb(%d, 0, 0)", i)
			id, err := m.Generate(context.Background(), req)
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			out <- submitted{id: id, color: req.Color}
		}(i)
	}
	wg.Wait()
	close(out)

	seen := map[string]bool{}
	for s := range out {
		if seen[s.id] {
			t.Fatalf("duplicate id %s", s.id)
		}
		seen[s.id] = true
		job := waitJob(t, m, s.id)
		if job.Request.Color != s.color {
			t.Fatalf("job %s request corrupted: %s != %s", s.id, job.Request.Color, s.color)
		}
		if job.Status != JobStatusCompleted || job.Result != "/static/previews/"+s.id+".png" {
			t.Fatalf("job %s result corrupted: %+v", s.id, job)
		}
	}
}

func TestManager_StopDrainsQueue(t *testing.T) {
	store := NewInMemoryStore()
	m, err := NewManager(1, 16, store, runnerFunc(func(ctx context.Context, jobID string, p synth.Params) (*executor.ExecutionResult, error) {
		time.Sleep(5 * time.Millisecond)
		return okRunner(ctx, jobID, p)
	}))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := m.Generate(context.Background(), sampleRequest())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		ids = append(ids, id)
	}
	m.Stop()
	m.Stop()

	for _, id := range ids {
		job, _ := store.Get(id)
		if !job.Status.Terminal() {
			t.Fatalf("job %s not drained: %s", id, job.Status)
		}
	}
	if _, err := m.Generate(context.Background(), sampleRequest()); !errors.Is(err, ErrManagerStopped) {
		t.Fatalf("expected ErrManagerStopped, got %v", err)
	}
}

type recordingSender struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recordingSender) Notify(ctx context.Context, url string, event webhook.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, event.Status)
	return nil
}

func TestManager_WebhookReceivesStatusChanges(t *testing.T) {
	sender := &recordingSender{}
	m, _ := newTestManager(t, 1, 4, runnerFunc(okRunner), WithSender(sender), WithStreamer(NewEventStreamer()))

	req := sampleRequest()
	req.WebhookURL = "http://example.invalid/hook"
	id, err := m.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	waitJob(t, m, id)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	want := []string{"processing", "completed"}
	if fmt.Sprint(sender.statuses) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, sender.statuses)
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	for in, want := range map[string]FallbackPolicy{"": FallbackFail, "fail": FallbackFail, "placeholder": FallbackPlaceholder} {
		got, err := ParseFallbackPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseFallbackPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFallbackPolicy("retry"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
