package executor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/paulgrammer/luminous/internal/synth"
)

type memSaver struct {
	mu     sync.Mutex
	images []*image.RGBA
	err    error
}

func (m *memSaver) Save(ctx context.Context, img image.Image) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, img.(*image.RGBA))
	return "/static/previews/test.png", nil
}

func TestRenderRunner_Success(t *testing.T) {
	saver := &memSaver{}
	r := NewRenderRunner(synth.New(0, 0), saver)

	res, err := r.Run(context.Background(), "job-1", synth.Params{Color: "#336699", Style: synth.StyleGradient, Width: 30, Height: 20})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Result != "/static/previews/test.png" {
		t.Fatalf("unexpected result %q", res.Result)
	}
	if len(saver.images) != 1 || saver.images[0].Bounds().Dx() != 30 || saver.images[0].Bounds().Dy() != 20 {
		t.Fatalf("expected one 30x20 image to be saved")
	}
	if res.Duration < 0 || res.EndTime.Before(res.StartTime) {
		t.Fatalf("bad timing %+v", res)
	}
}

func TestRenderRunner_SynthesisError(t *testing.T) {
	saver := &memSaver{}
	r := NewRenderRunner(synth.New(0, 0), saver)

	res, err := r.Run(context.Background(), "job-2", synth.Params{Color: "nope", Width: 10, Height: 10})
	var serr *synth.SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if res == nil || res.Error == nil {
		t.Fatalf("expected result to carry the error")
	}
	if len(saver.images) != 0 {
		t.Fatalf("nothing should be saved on failure")
	}
}

func TestRenderRunner_SaveError(t *testing.T) {
	boom := errors.New("disk full")
	r := NewRenderRunner(synth.New(0, 0), &memSaver{err: boom})

	_, err := r.Run(context.Background(), "job-3", synth.Params{Color: "red", Width: 4, Height: 4})
	if !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	var serr *synth.SynthesisError
	if errors.As(err, &serr) {
		t.Fatalf("save error must not look like a synthesis error")
	}
}

func TestRenderRunner_EmptyJobID(t *testing.T) {
	r := NewRenderRunner(synth.New(0, 0), &memSaver{})
	if _, err := r.Run(context.Background(), " ", synth.Params{Color: "red", Width: 1, Height: 1}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRenderRunner_RandSourceIsDeterministic(t *testing.T) {
	saver := &memSaver{}
	r := NewRenderRunner(synth.New(0, 0), saver, WithRandSource(func() *rand.Rand {
		return rand.New(rand.NewPCG(5, 6))
	}))

	p := synth.Params{Color: "black", Style: synth.StyleAbstract, Width: 64, Height: 64}
	for i := 0; i < 2; i++ {
		if _, err := r.Run(context.Background(), "job", p); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if !bytes.Equal(saver.images[0].Pix, saver.images[1].Pix) {
		t.Fatalf("fixed random source produced different images")
	}
}
