// Package worker runs the detector as a long-lived child process.
//
// Requests and replies travel over the child's stdin and stdout as
// length-prefixed msgpack maps, one reply per request. A broken pipe, a
// timed out request or a dead child resets the process and the next
// request starts a fresh one.
package worker

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"penwatch/internal/core/framestore"
	"penwatch/internal/core/visualcue"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
	"penwatch/internal/platform/wire"
	"penwatch/internal/services/analysis/domain"

	"github.com/vmihailenco/msgpack/v5"
)

const defaultMaxReplyBytes = 16 << 20

// Config describes how to start the child
type Config struct {
	Command string
	Args    []string
	Dir     string
	// Env is appended to the parent environment
	Env []string
	// MaxReplyBytes caps a single reply, 0 means 16 MiB
	MaxReplyBytes int
	// StopGrace is how long a child may take to exit after stdin closes
	StopGrace time.Duration
}

type request struct {
	FrameData  []byte `msgpack:"frame_data"`
	Seq        uint64 `msgpack:"seq"`
	Source     string `msgpack:"source"`
	ReceivedAt string `msgpack:"received_at"`
}

type block struct {
	BBox  []float64 `msgpack:"bbox"`
	Label string    `msgpack:"label"`
	Text  string    `msgpack:"text"`
}

type response struct {
	Pens   [][]float64 `msgpack:"pens"`
	Blocks []block     `msgpack:"blocks"`
	Count  int         `msgpack:"count"`
	Answer string      `msgpack:"answer"`
	Labels []string    `msgpack:"labels"`
	Error  string      `msgpack:"error"`
}

// pipe is one running child seen through its stdio
type pipe struct {
	in   io.WriteCloser
	out  io.Reader
	pid  int
	stop func() error
}

type spawnFunc func() (*pipe, error)

// Stats are lifetime counters
type Stats struct {
	Requests uint64 `json:"requests"`
	Failures uint64 `json:"failures"`
	Spawns   uint64 `json:"spawns"`
	Running  bool   `json:"running"`
}

// Client owns the child process; requests are serialized
type Client struct {
	cfg   Config
	spawn spawnFunc

	mu  sync.Mutex
	cur *pipe

	requests atomic.Uint64
	failures atomic.Uint64
	spawns   atomic.Uint64

	log *logger.Logger
}

var _ domain.Detector = (*Client)(nil)

// New prepares a client; the child starts on the first Detect
func New(cfg Config) (*Client, error) {
	if cfg.Command == "" {
		return nil, perr.New(perr.ErrorCodeInvalidArgument, "worker command is required")
	}
	if cfg.MaxReplyBytes <= 0 {
		cfg.MaxReplyBytes = defaultMaxReplyBytes
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 2 * time.Second
	}
	c := &Client{cfg: cfg, log: logger.Named("worker")}
	c.spawn = func() (*pipe, error) { return startProcess(c.cfg, c.log) }
	return c, nil
}

// Detect sends one frame and waits for the matching reply
func (c *Client) Detect(ctx context.Context, f framestore.Frame) (domain.Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests.Add(1)
	p, err := c.ensure()
	if err != nil {
		c.failures.Add(1)
		return domain.Detection{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "start analysis worker")
	}

	payload, err := msgpack.Marshal(request{
		FrameData:  f.Data,
		Seq:        f.Seq,
		Source:     f.Source,
		ReceivedAt: f.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return domain.Detection{}, perr.Wrap(err, perr.ErrorCodeJSON, "encode worker request")
	}

	type reply struct {
		raw []byte
		err error
	}
	done := make(chan reply, 1)
	go func() {
		if err := wire.WriteFrame(p.in, payload); err != nil {
			done <- reply{err: err}
			return
		}
		raw, err := wire.ReadFrame(p.out, c.cfg.MaxReplyBytes)
		done <- reply{raw: raw, err: err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		// the reply would arrive out of step with the next request
		c.reset("request abandoned")
		c.failures.Add(1)
		return domain.Detection{}, perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "analysis worker did not reply in time")
	case r = <-done:
	}
	if r.err != nil {
		c.reset(r.err.Error())
		c.failures.Add(1)
		return domain.Detection{}, perr.Wrap(r.err, perr.ErrorCodeUnavailable, "analysis worker pipe failed")
	}

	var resp response
	if err := msgpack.Unmarshal(r.raw, &resp); err != nil {
		c.failures.Add(1)
		return domain.Detection{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode worker reply")
	}
	if resp.Error != "" {
		c.failures.Add(1)
		return domain.Detection{}, perr.Newf(perr.ErrorCodeUnavailable, "analysis worker: %s", resp.Error)
	}
	return resp.detection(), nil
}

// Stats returns lifetime counters
func (c *Client) Stats() Stats {
	c.mu.Lock()
	running := c.cur != nil
	c.mu.Unlock()
	return Stats{
		Requests: c.requests.Load(),
		Failures: c.failures.Load(),
		Spawns:   c.spawns.Load(),
		Running:  running,
	}
}

// Close stops the child if one is running
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return nil
	}
	err := c.cur.stop()
	c.cur = nil
	return err
}

func (c *Client) ensure() (*pipe, error) {
	if c.cur != nil {
		return c.cur, nil
	}
	p, err := c.spawn()
	if err != nil {
		return nil, err
	}
	n := c.spawns.Add(1)
	c.log.Info().Int("pid", p.pid).Uint64("spawns", n).Str("command", c.cfg.Command).Msg("analysis worker started")
	c.cur = p
	return p, nil
}

func (c *Client) reset(reason string) {
	if c.cur == nil {
		return
	}
	c.log.Warn().Int("pid", c.cur.pid).Str("reason", reason).Msg("resetting analysis worker")
	if err := c.cur.stop(); err != nil {
		c.log.Debug().Err(err).Msg("worker stop")
	}
	c.cur = nil
}

func (r response) detection() domain.Detection {
	d := domain.Detection{Count: r.Count, Answer: r.Answer, Labels: r.Labels}
	for _, p := range r.Pens {
		if b, ok := toBox(p); ok {
			d.Pens = append(d.Pens, b)
		}
	}
	for _, b := range r.Blocks {
		box, ok := toBox(b.BBox)
		if !ok {
			continue
		}
		d.Blocks = append(d.Blocks, visualcue.Block{Box: box, Label: b.Label, Text: b.Text})
	}
	return d
}

func toBox(v []float64) (visualcue.Box, bool) {
	if len(v) != 4 {
		return visualcue.Box{}, false
	}
	return visualcue.Box{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, true
}
