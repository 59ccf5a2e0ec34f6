// Package domain defines the types and ports of the analysis service
package domain

import (
	"time"

	"penwatch/internal/core/visualcue"

	"github.com/google/uuid"
)

// Mode selects which pipeline analyzes frames
type Mode string

// Pipeline modes
const (
	ModeNoop   Mode = "noop"
	ModeWorker Mode = "worker"
	ModeVision Mode = "vision"
	ModeCue    Mode = "cue"
)

// Modes lists every accepted mode, used for config validation
func Modes() []string {
	return []string{string(ModeNoop), string(ModeWorker), string(ModeVision), string(ModeCue)}
}

// Detection is what the detector process reports for one frame
type Detection struct {
	Pens   []visualcue.Box
	Blocks []visualcue.Block
	// Count is the detector's own cue count, 0 means len(Pens)
	Count  int
	Answer string
	Labels []string
}

// Cues returns the number of visual cues in the detection
func (d Detection) Cues() int {
	if d.Count > 0 {
		return d.Count
	}
	return len(d.Pens)
}

// Reading is the structured reply expected from the vision model
type Reading struct {
	Pens     int    `json:"pens"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CycleRecord is one journal row
type CycleRecord struct {
	ID         uuid.UUID `json:"id"`
	FrameSeq   uint64    `json:"frame_seq"`
	Source     string    `json:"source"`
	Bytes      int       `json:"bytes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
	Count      int       `json:"count"`
	Answer     string    `json:"answer,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Paused     bool      `json:"paused"`
	Retrigger  bool      `json:"retrigger"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  int       `json:"error_code,omitempty"`
}
