package domain

import (
	"context"
	"encoding/json"

	"penwatch/internal/core/framestore"
)

// Detector finds pens and layout blocks in a frame
type Detector interface {
	Detect(ctx context.Context, f framestore.Frame) (Detection, error)
}

// Generator is a language model endpoint
type Generator interface {
	Generate(ctx context.Context, prompt string, images ...[]byte) (string, error)
	GenerateJSON(ctx context.Context, prompt string, images ...[]byte) (json.RawMessage, error)
}

// Journal stores finished cycles, best effort
type Journal interface {
	Name() string
	Record(ctx context.Context, rec CycleRecord) error
}

// CycleReader lists recent cycles, newest first
type CycleReader interface {
	Recent(ctx context.Context, limit int) ([]CycleRecord, error)
}
