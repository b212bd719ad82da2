package host

import (
	"context"
	"sync/atomic"
	"time"

	"replenisher/internal/replenish"
	"replenisher/internal/sim/world"
)

// State is the admin view of the host.
type State struct {
	WorldID       string         `json:"world_id"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	Surface       int            `json:"surface"`
	OceanDistance int            `json:"ocean_distance"`
	Runs          uint64         `json:"runs"`
	AutoRefill    bool           `json:"auto_refill"`
	LastRun       time.Time      `json:"last_run"`
	NextDue       time.Time      `json:"next_due"`
	Regions       []world.Region `json:"regions"`
	Resources     world.Stats    `json:"resources"`
	Metrics       Metrics        `json:"metrics"`
}

// Metrics are cumulative counters, safe to read from any goroutine.
type Metrics struct {
	RunsTotal         uint64 `json:"runs_total"`
	ScheduleRunsTotal uint64 `json:"schedule_runs_total"`
	CommandRunsTotal  uint64 `json:"command_runs_total"`
	AttemptsTotal     uint64 `json:"attempts_total"`
	PlacedTotal       uint64 `json:"placed_total"`
	BlockedTotal      uint64 `json:"blocked_total"`
	FaultsTotal       uint64 `json:"faults_total"`
	SweptTotal        uint64 `json:"swept_total"`
	SinkErrorsTotal   uint64 `json:"sink_errors_total"`
	ExecQueueDepth    int    `json:"exec_queue_depth"`
}

type counters struct {
	runs, scheduled, commanded        atomic.Uint64
	attempts, placed, blocked, faults atomic.Uint64
	swept, sinkErrors                 atomic.Uint64
}

func (c *counters) observe(trigger replenish.Trigger, res replenish.Result) {
	c.runs.Add(1)
	if trigger == replenish.TriggerSchedule {
		c.scheduled.Add(1)
	} else {
		c.commanded.Add(1)
	}
	c.attempts.Add(uint64(res.Attempted))
	c.placed.Add(uint64(res.Succeeded))
	c.blocked.Add(uint64(res.Blocked))
	c.faults.Add(uint64(res.Faults))
	if res.Sweep != nil {
		c.swept.Add(uint64(res.Sweep.Removed))
	}
}

func (h *Host) Metrics() Metrics {
	c := &h.metrics
	return Metrics{
		RunsTotal:         c.runs.Load(),
		ScheduleRunsTotal: c.scheduled.Load(),
		CommandRunsTotal:  c.commanded.Load(),
		AttemptsTotal:     c.attempts.Load(),
		PlacedTotal:       c.placed.Load(),
		BlockedTotal:      c.blocked.Load(),
		FaultsTotal:       c.faults.Load(),
		SweptTotal:        c.swept.Load(),
		SinkErrorsTotal:   c.sinkErrors.Load(),
		ExecQueueDepth:    len(h.execReq),
	}
}

// State asks the host goroutine for a consistent view of the world.
func (h *Host) State(ctx context.Context) (State, error) {
	resp := make(chan State, 1)
	select {
	case h.stateReq <- stateReq{resp: resp}:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (h *Host) state() State {
	w := h.world
	return State{
		WorldID:       w.ID(),
		Width:         w.Width(),
		Height:        w.Height(),
		Surface:       w.Surface(),
		OceanDistance: w.OceanDistance(),
		Runs:          h.runs.Load(),
		AutoRefill:    h.settings.Current().AutoRefill,
		LastRun:       h.trigger.LastRun(),
		NextDue:       h.trigger.NextDue(),
		Regions:       w.Regions(),
		Resources:     w.Stats(),
		Metrics:       h.Metrics(),
	}
}
