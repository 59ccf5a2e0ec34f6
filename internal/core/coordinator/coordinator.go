// Package coordinator is the one public surface for changing the gate and
// talking to peers. The operator console, the admin API and control peers all
// go through it.
package coordinator

import (
	"context"
	"time"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/directive"
	"penwatch/internal/core/framestore"
	"penwatch/internal/core/gate"
	"penwatch/internal/core/trigger"
	"penwatch/internal/platform/logger"
)

// Origin names who asked for an action
type Origin uint8

// Origins
const (
	Operator Origin = iota
	Admin
	Peer
)

// Source identifies the caller of an action
type Source struct {
	Origin Origin
	ID     string
}

// OperatorSource is the local console
func OperatorSource() Source { return Source{Origin: Operator} }

// AdminSource is the admin API, id is the X-Actor label and may be empty
func AdminSource(id string) Source { return Source{Origin: Admin, ID: id} }

// PeerSource is a control connection
func PeerSource(id string) Source { return Source{Origin: Peer, ID: id} }

func (s Source) String() string {
	switch s.Origin {
	case Operator:
		return "operator"
	case Admin:
		if s.ID == "" {
			return "admin"
		}
		return "admin:" + s.ID
	case Peer:
		return "peer:" + s.ID
	default:
		return "unknown"
	}
}

// Status is the aggregated runtime view
type Status struct {
	Gate       gate.Status      `json:"gate"`
	Trigger    trigger.Stats    `json:"trigger"`
	Store      framestore.Stats `json:"store"`
	Peers      int              `json:"peers"`
	Broadcasts uint64           `json:"broadcasts"`
	Drops      uint64           `json:"drops"`
	StartedAt  time.Time        `json:"started_at"`
	Uptime     string           `json:"uptime"`
}

// Outcome reports the effect of a gate action
type Outcome struct {
	Changed bool             `json:"changed"`
	State   gate.State       `json:"state"`
	Report  broadcast.Report `json:"report"`
}

// Coordinator binds the gate, the peer registry and the trigger
type Coordinator struct {
	store *framestore.Store
	gate  *gate.Gate
	peers *broadcast.Registry
	trig  *trigger.Trigger

	started time.Time
	log     *logger.Logger
}

// New builds a coordinator; trig may be nil until the trigger is constructed
func New(store *framestore.Store, g *gate.Gate, peers *broadcast.Registry, trig *trigger.Trigger) *Coordinator {
	return &Coordinator{
		store:   store,
		gate:    g,
		peers:   peers,
		trig:    trig,
		started: time.Now(),
		log:     logger.Named("coordinator"),
	}
}

// Pause stops the trigger before its next cycle and tells every peer
func (c *Coordinator) Pause(ctx context.Context, src Source) Outcome {
	changed := c.gate.Pause(src.String())
	rep := c.peers.Broadcast(ctx, directive.Pause())
	c.log.Info().Str("source", src.String()).Bool("changed", changed).Int("delivered", rep.Delivered).Msg("pause")
	return Outcome{Changed: changed, State: c.gate.State(), Report: rep}
}

// Resume reopens the gate
// Operator and admin resumes are announced to peers; a peer's resume is not
// echoed back since the peer initiated it
func (c *Coordinator) Resume(ctx context.Context, src Source) Outcome {
	changed := c.gate.Resume(src.String())
	out := Outcome{Changed: changed, State: c.gate.State()}
	if src.Origin != Peer {
		out.Report = c.peers.Broadcast(ctx, directive.Resume())
	}
	c.log.Info().Str("source", src.String()).Bool("changed", changed).Int("delivered", out.Report.Delivered).Msg("resume")
	return out
}

// Say broadcasts a TEXT directive
func (c *Coordinator) Say(ctx context.Context, src Source, msg string) (broadcast.Report, error) {
	d, err := directive.Text(msg)
	if err != nil {
		return broadcast.Report{}, err
	}
	rep := c.peers.Broadcast(ctx, d)
	c.log.Info().Str("source", src.String()).Int("delivered", rep.Delivered).Msg("text sent")
	return rep, nil
}

// Peers lists control peers
func (c *Coordinator) Peers() []broadcast.PeerInfo { return c.peers.Peers() }

// Status gathers gate, trigger, store and registry state
func (c *Coordinator) Status() Status {
	b, d := c.peers.Counters()
	st := Status{
		Gate:       c.gate.Snapshot(),
		Store:      c.store.Stats(),
		Peers:      c.peers.Len(),
		Broadcasts: b,
		Drops:      d,
		StartedAt:  c.started,
		Uptime:     time.Since(c.started).Truncate(time.Second).String(),
	}
	if c.trig != nil {
		st.Trigger = c.trig.Stats()
	}
	return st
}
