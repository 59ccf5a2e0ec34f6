// Package service implements the analysis pipelines and the cycle recorder
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"penwatch/internal/core/framestore"
	"penwatch/internal/core/trigger"
	"penwatch/internal/core/visualcue"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
	"penwatch/internal/services/analysis/domain"
)

// Prompts used when none is configured
const (
	DefaultVisionPrompt = "Count the pens visible in the image. " +
		"Give me the answer to the question pointed to by the red pen. " +
		"State the question first, then provide the answer in a clear and concise manner. " +
		`Reply with only a JSON object: {"pens": <number of pens>, "question": "<question or empty>", "answer": "<answer or empty>"}`

	DefaultCuePrompt = "Give me the answer to the question in the context below. " +
		"State the question first, then provide the answer in a clear and concise manner."
)

// FormatAnswer renders the peer facing answer text
func FormatAnswer(question, answer string) string {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	switch {
	case question != "" && answer != "":
		return "Q: " + question + " A: " + answer
	default:
		return answer
	}
}

func summarize(count int, labels []string, answer string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cues=%d", count)
	if len(labels) > 0 {
		sb.WriteString(" labels=")
		sb.WriteString(strings.Join(labels, ","))
	}
	if answer != "" {
		sb.WriteString(" answer=")
		sb.WriteString(answer)
	}
	return sb.String()
}

// Noop never reports cues, capture is never paused by it
type Noop struct{}

// Analyze implements trigger.Analyzer
func (Noop) Analyze(_ context.Context, f framestore.Frame) (trigger.Result, error) {
	return trigger.Result{Summary: fmt.Sprintf("frame %d (%d bytes)", f.Seq, len(f.Data))}, nil
}

// WorkerPipeline counts cues with the detector process alone
type WorkerPipeline struct {
	det domain.Detector
}

// NewWorkerPipeline wraps a detector
func NewWorkerPipeline(det domain.Detector) *WorkerPipeline {
	return &WorkerPipeline{det: det}
}

// Analyze implements trigger.Analyzer
func (p *WorkerPipeline) Analyze(ctx context.Context, f framestore.Frame) (trigger.Result, error) {
	d, err := p.det.Detect(ctx, f)
	if err != nil {
		return trigger.Result{}, err
	}
	return trigger.Result{
		Count:   d.Cues(),
		Answer:  d.Answer,
		Labels:  d.Labels,
		Summary: summarize(d.Cues(), d.Labels, d.Answer),
	}, nil
}

// VisionPipeline sends the whole frame to a vision model
type VisionPipeline struct {
	gen    domain.Generator
	prompt string
}

// NewVisionPipeline wraps a generator, empty prompt uses DefaultVisionPrompt
func NewVisionPipeline(gen domain.Generator, prompt string) *VisionPipeline {
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	return &VisionPipeline{gen: gen, prompt: prompt}
}

// Analyze implements trigger.Analyzer
func (p *VisionPipeline) Analyze(ctx context.Context, f framestore.Frame) (trigger.Result, error) {
	raw, err := p.gen.GenerateJSON(ctx, p.prompt, f.Data)
	if err != nil {
		return trigger.Result{}, err
	}
	var rd domain.Reading
	if err := json.Unmarshal(raw, &rd); err != nil {
		return trigger.Result{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode vision reading")
	}
	if rd.Pens < 0 {
		return trigger.Result{}, perr.InvalidArgf("vision reading has negative pen count %d", rd.Pens)
	}
	answer := FormatAnswer(rd.Question, rd.Answer)
	return trigger.Result{
		Count:   rd.Pens,
		Answer:  answer,
		Summary: summarize(rd.Pens, nil, answer),
	}, nil
}

// CuePipeline selects the text between two pens and optionally asks a model about it
type CuePipeline struct {
	det    domain.Detector
	gen    domain.Generator
	filter visualcue.Filter
	prompt string
	log    *logger.Logger
}

// NewCuePipeline wraps a detector; gen may be nil to skip the question step
func NewCuePipeline(det domain.Detector, gen domain.Generator, filter visualcue.Filter, prompt string) *CuePipeline {
	if prompt == "" {
		prompt = DefaultCuePrompt
	}
	return &CuePipeline{det: det, gen: gen, filter: filter, prompt: prompt, log: logger.Named("cue")}
}

// Analyze implements trigger.Analyzer
func (p *CuePipeline) Analyze(ctx context.Context, f framestore.Frame) (trigger.Result, error) {
	d, err := p.det.Detect(ctx, f)
	if err != nil {
		return trigger.Result{}, err
	}
	res := trigger.Result{Count: d.Cues(), Labels: d.Labels, Answer: d.Answer}

	sel, err := p.filter.Select(d.Pens, d.Blocks)
	if err != nil {
		// fewer or more than two pens, nothing is being pointed at
		res.Summary = summarize(res.Count, res.Labels, res.Answer)
		return res, nil
	}

	text := sel.Text()
	p.log.Debug().Uint64("seq", f.Seq).Int("blocks", len(sel.Blocks)).Int("text_len", len(text)).Msg("cue selection")
	if text != "" {
		if p.gen != nil {
			reply, err := p.gen.Generate(ctx, p.prompt+"\n\nContext:\n"+text)
			if err != nil {
				return trigger.Result{}, err
			}
			res.Answer = strings.TrimSpace(reply)
		} else if res.Answer == "" {
			res.Answer = text
		}
	}
	res.Summary = summarize(res.Count, res.Labels, res.Answer)
	return res, nil
}
