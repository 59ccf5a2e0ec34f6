// Package http provides the operator admin endpoints
package http

import (
	stdctx "context"
	"net/http"
	"strconv"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/coordinator"
	"penwatch/internal/modkit/httpkit"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/services/analysis/domain"
)

// Cycle listing bounds
const (
	DefaultCycleLimit = 50
	MaxCycleLimit     = 500
)

// Controller is the slice of the coordinator the admin API drives
type Controller interface {
	Pause(ctx stdctx.Context, src coordinator.Source) coordinator.Outcome
	Resume(ctx stdctx.Context, src coordinator.Source) coordinator.Outcome
	Say(ctx stdctx.Context, src coordinator.Source, msg string) (broadcast.Report, error)
	Peers() []broadcast.PeerInfo
	Status() coordinator.Status
}

// Deps are the handler dependencies
type Deps struct {
	Ctl    Controller
	Cycles domain.CycleReader
	// Components adds named snapshots to the status payload
	Components map[string]func() any
}

type handlers struct {
	deps Deps
}

// Register mounts the admin routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/status", h.status)
	httpkit.Get(r, "/peers", h.peers)
	httpkit.Get(r, "/cycles", h.cycles)
	httpkit.Post(r, "/pause", h.pause)
	httpkit.Post(r, "/resume", h.resume)
	httpkit.PostJSON[TextRequest](r, "/text", h.text)
}

// TextRequest is the body of POST /text
type TextRequest struct {
	Message string `json:"message" validate:"required,max=512" example:"lights off in five"`
}

// StatusResponse is the runtime snapshot plus component stats
type StatusResponse struct {
	Runtime    coordinator.Status `json:"runtime"`
	Components map[string]any     `json:"components,omitempty"`
}

// source labels an admin request by its actor; without one it is plain admin
func source(r *http.Request) coordinator.Source {
	return coordinator.AdminSource(httpkit.Actor(r, ""))
}

// swagger:route GET /status Admin adminStatus
// @Summary Gate, trigger, store and peer state
// @Tags Admin
// @Produce json
// @Success 200 type StatusResponse ok
// @Router /status [get]
func (h *handlers) status(_ *http.Request) (any, error) {
	out := StatusResponse{Runtime: h.deps.Ctl.Status()}
	if len(h.deps.Components) > 0 {
		out.Components = make(map[string]any, len(h.deps.Components))
		for name, fn := range h.deps.Components {
			out.Components[name] = fn()
		}
	}
	return out, nil
}

// swagger:route GET /peers Admin adminPeers
// @Summary Connected control peers
// @Tags Admin
// @Produce json
// @Success 200 {array} broadcast.PeerInfo ok
// @Router /peers [get]
func (h *handlers) peers(_ *http.Request) (any, error) {
	return h.deps.Ctl.Peers(), nil
}

// swagger:route GET /cycles Admin adminCycles
// @Summary Recent analysis cycles, newest first
// @Tags Admin
// @Produce json
// @Param limit query int false "1..500, default 50"
// @Success 200 {array} domain.CycleRecord ok
// @Router /cycles [get]
func (h *handlers) cycles(r *http.Request) (any, error) {
	limit := DefaultCycleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxCycleLimit {
			return nil, perr.InvalidArgf("limit must be between 1 and %d", MaxCycleLimit)
		}
		limit = n
	}
	if h.deps.Cycles == nil {
		return []domain.CycleRecord{}, nil
	}
	return h.deps.Cycles.Recent(r.Context(), limit)
}

// swagger:route POST /pause Admin adminPause
// @Summary Pause the trigger and broadcast PAUSE
// @Tags Admin
// @Produce json
// @Param X-Actor header string false "operator label"
// @Success 200 type coordinator.Outcome ok
// @Router /pause [post]
func (h *handlers) pause(r *http.Request) (any, error) {
	return h.deps.Ctl.Pause(r.Context(), source(r)), nil
}

// swagger:route POST /resume Admin adminResume
// @Summary Resume the trigger and broadcast RESUME
// @Tags Admin
// @Produce json
// @Param X-Actor header string false "operator label"
// @Success 200 type coordinator.Outcome ok
// @Router /resume [post]
func (h *handlers) resume(r *http.Request) (any, error) {
	return h.deps.Ctl.Resume(r.Context(), source(r)), nil
}

// swagger:route POST /text Admin adminText
// @Summary Broadcast a TEXT line to every peer
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body TextRequest true "Message"
// @Success 200 type broadcast.Report ok
// @Router /text [post]
func (h *handlers) text(r *http.Request, in TextRequest) (any, error) {
	return h.deps.Ctl.Say(r.Context(), source(r), in.Message)
}
