package executor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/paulgrammer/luminous/internal/synth"
)

// ExecutionResult contains the result of one render
type ExecutionResult struct {
	JobID     string
	Result    string
	Width     int
	Height    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

type Runner interface {
	Run(ctx context.Context, jobID string, params synth.Params) (*ExecutionResult, error)
}

// ImageSaver persists a rendered image and returns a reference to it.
type ImageSaver interface {
	Save(ctx context.Context, img image.Image) (string, error)
}

// ExecutorConfig allows customization of execution behavior
type ExecutorConfig struct {
	// RandSource returns the random source for one render. Nil means a
	// freshly seeded PCG per render.
	RandSource     func() *rand.Rand
	VerboseLogging bool
}

type RunnerOption func(*renderRunner)

func WithExecutorConfig(config *ExecutorConfig) RunnerOption {
	return func(r *renderRunner) {
		r.config = config
	}
}

// WithRandSource fixes the random source used by every render.
func WithRandSource(fn func() *rand.Rand) RunnerOption {
	return func(r *renderRunner) {
		r.config.RandSource = fn
	}
}

func NewRenderRunner(synthesizer *synth.Synthesizer, saver ImageSaver, args ...RunnerOption) Runner {
	runner := &renderRunner{
		synth:  synthesizer,
		saver:  saver,
		config: &ExecutorConfig{},
	}
	for _, arg := range args {
		arg(runner)
	}
	return runner
}

type renderRunner struct {
	synth  *synth.Synthesizer
	saver  ImageSaver
	config *ExecutorConfig
}

func (rr *renderRunner) Run(ctx context.Context, jobID string, params synth.Params) (*ExecutionResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("validation failed: %w", errors.New("jobID cannot be empty"))
	}

	result := &ExecutionResult{
		JobID:     jobID,
		Width:     params.Width,
		Height:    params.Height,
		StartTime: time.Now(),
	}

	if rr.config.VerboseLogging {
		slog.Info("Starting render",
			"job_id", jobID,
			"style", params.Style,
			"color", params.Color,
			"width", params.Width,
			"height", params.Height,
		)
	}

	var rng *rand.Rand
	if rr.config.RandSource != nil {
		rng = rr.config.RandSource()
	}

	img, err := rr.synth.Render(params, rng)
	if err != nil {
		return rr.finish(result, err)
	}

	ref, err := rr.saver.Save(ctx, img)
	if err != nil {
		return rr.finish(result, fmt.Errorf("store image: %w", err))
	}
	result.Result = ref
	return rr.finish(result, nil)
}

func (rr *renderRunner) finish(result *ExecutionResult, err error) (*ExecutionResult, error) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Error = err
	rr.logExecutionResult(result)
	return result, err
}

func (rr *renderRunner) logExecutionResult(result *ExecutionResult) {
	logLevel := slog.LevelInfo
	if result.Error != nil {
		logLevel = slog.LevelError
	}

	attrs := []any{
		"job_id", result.JobID,
		"width", result.Width,
		"height", result.Height,
		"duration", result.Duration.String(),
	}
	if result.Result != "" {
		attrs = append(attrs, "result", result.Result)
	}
	if result.Error != nil {
		attrs = append(attrs, "error", result.Error.Error())
	}

	slog.Log(context.Background(), logLevel, "Render completed", attrs...)
}
