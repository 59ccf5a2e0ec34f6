package module

import (
	"strings"
	"time"

	"penwatch/internal/platform/config"
	"penwatch/internal/services/analysis/domain"
)

// Options holds configuration settings for the analysis module
type Options struct {
	Mode domain.Mode

	WorkerCmd  string
	WorkerArgs []string
	WorkerDir  string

	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration
	Prompt        string
	// CueAsk sends the selected cue text to ollama in cue mode
	CueAsk bool

	// MinCues is how many cues pause capture
	MinCues          int
	BroadcastResults bool
	CycleTimeout     time.Duration

	JournalQueue   int
	JournalKeep    int
	JournalTimeout time.Duration
	// EnsureSchema creates the journal tables at startup
	EnsureSchema bool
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	af := cfg.Prefix("ANALYSIS_")
	return Options{
		Mode: domain.Mode(strings.ToLower(af.MayEnum("MODE", string(domain.ModeNoop), domain.Modes()...))),

		WorkerCmd:  af.MayString("WORKER_CMD", ""),
		WorkerArgs: af.MayCSV("WORKER_ARGS", nil),
		WorkerDir:  af.MayString("WORKER_DIR", ""),

		OllamaURL:     af.MayString("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   af.MayString("OLLAMA_MODEL", "llama3.2-vision"),
		OllamaTimeout: af.MayDuration("OLLAMA_TIMEOUT", 2*time.Minute),
		Prompt:        af.MayString("PROMPT", ""),
		CueAsk:        af.MayBool("CUE_ASK", true),

		MinCues:          af.MayInt("MIN_CUES", 2),
		BroadcastResults: af.MayBool("BROADCAST_RESULTS", false),
		CycleTimeout:     af.MayDuration("CYCLE_TIMEOUT", 0),

		JournalQueue:   af.MayInt("JOURNAL_QUEUE", 64),
		JournalKeep:    af.MayInt("JOURNAL_KEEP", 100),
		JournalTimeout: af.MayDuration("JOURNAL_TIMEOUT", 2*time.Second),
		EnsureSchema:   af.MayBool("JOURNAL_ENSURE_SCHEMA", true),
	}
}

// merge copies non zero overrides onto o
func (o Options) merge(over Options) Options {
	if over.Mode != "" {
		o.Mode = over.Mode
	}
	if over.WorkerCmd != "" {
		o.WorkerCmd = over.WorkerCmd
	}
	if len(over.WorkerArgs) > 0 {
		o.WorkerArgs = over.WorkerArgs
	}
	if over.WorkerDir != "" {
		o.WorkerDir = over.WorkerDir
	}
	if over.OllamaURL != "" {
		o.OllamaURL = over.OllamaURL
	}
	if over.OllamaModel != "" {
		o.OllamaModel = over.OllamaModel
	}
	if over.OllamaTimeout > 0 {
		o.OllamaTimeout = over.OllamaTimeout
	}
	if over.Prompt != "" {
		o.Prompt = over.Prompt
	}
	if over.MinCues > 0 {
		o.MinCues = over.MinCues
	}
	if over.BroadcastResults {
		o.BroadcastResults = true
	}
	if over.CycleTimeout > 0 {
		o.CycleTimeout = over.CycleTimeout
	}
	if over.JournalQueue > 0 {
		o.JournalQueue = over.JournalQueue
	}
	if over.JournalKeep > 0 {
		o.JournalKeep = over.JournalKeep
	}
	if over.JournalTimeout > 0 {
		o.JournalTimeout = over.JournalTimeout
	}
	return o
}
