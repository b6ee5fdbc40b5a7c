package jobs

import (
	"strings"
	"time"

	"github.com/paulgrammer/luminous/internal/synth"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// canTransition encodes pending -> processing -> {completed | failed}.
func canTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	}
	return false
}

const DefaultColorTemp = 6500

// WallpaperRequest is the immutable description of a wallpaper. Description
// and ColorTemp are stored with the job but do not affect rendering.
type WallpaperRequest struct {
	Color       string `json:"color"`
	Style       string `json:"style"`
	Description string `json:"description"`
	Resolution  string `json:"resolution"`
	ColorTemp   int    `json:"colorTemp"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
}

// NewWallpaperRequest returns a request holding the documented defaults, to
// be overwritten by decoded fields.
func NewWallpaperRequest() WallpaperRequest {
	return WallpaperRequest{
		Resolution: synth.DefaultResolution,
		ColorTemp:  DefaultColorTemp,
	}
}

// Params validates the request against s and converts it to render params.
func (r WallpaperRequest) Params(s *synth.Synthesizer) (synth.Params, error) {
	if _, err := synth.ParseColor(r.Color); err != nil {
		return synth.Params{}, &ValidationError{Field: "color", Err: err}
	}
	w, h, err := synth.ParseResolution(r.Resolution)
	if err != nil {
		return synth.Params{}, &ValidationError{Field: "resolution", Err: err}
	}
	if err := s.CheckDimensions(w, h); err != nil {
		return synth.Params{}, &ValidationError{Field: "resolution", Err: err}
	}
	return synth.Params{
		Color:  r.Color,
		Style:  synth.Style(strings.ToLower(strings.TrimSpace(r.Style))),
		Width:  w,
		Height: h,
	}, nil
}

type Job struct {
	ID      string           `json:"id"`
	Status  JobStatus        `json:"status"`
	Request WallpaperRequest `json:"request"`

	Result   string `json:"result,omitempty"`
	Message  string `json:"message,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Outcome carries the fields set alongside a status transition.
type Outcome struct {
	Result   string
	Message  string
	Fallback bool
}
