package host

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"replenisher/internal/command"
	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
	"replenisher/internal/replenish/schedule"
	"replenisher/internal/settings"
	"replenisher/internal/sim/world"
)

var ErrSnapshotBusy = errors.New("snapshot sink busy")

// SettingsSource is the settings provider the host reads on every tick.
type SettingsSource interface {
	Current() settings.Settings
	Reload() error
}

type Config struct {
	// TickInterval is how often the refill trigger is polled. Default 1s.
	TickInterval time.Duration
	// SnapshotEvery writes a periodic snapshot to the sink. Zero disables it.
	SnapshotEvery time.Duration

	Logger *log.Logger
	// RunLogger receives the runner's fault reports. Defaults to Logger.
	RunLogger *log.Logger
	Sinks     []replenish.RecordSink
	Rng       *rand.Rand
	Clock     func() time.Time
}

// Host owns the world. Run is the only goroutine that touches it; every
// other caller goes through a request channel.
type Host struct {
	world    *world.World
	settings SettingsSource
	runner   *replenish.Runner
	trigger  *schedule.Trigger
	handler  *command.Handler
	sinks    []replenish.RecordSink
	log      *log.Logger
	now      func() time.Time

	tickInterval  time.Duration
	snapshotEvery time.Duration
	snapshotSink  chan<- snapshot.WorldV1

	execReq  chan execReq
	stateReq chan stateReq
	snapReq  chan snapReq

	runs    atomic.Uint64
	metrics counters
}

type execReq struct {
	line string
	resp chan command.Reply
}

type stateReq struct {
	resp chan State
}

type snapReq struct {
	// toSink routes the export to the snapshot sink instead of resp.
	toSink bool
	resp   chan snapResp
}

type snapResp struct {
	snap snapshot.WorldV1
	err  error
}

func New(w *world.World, s SettingsSource, cfg Config) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	runLog := cfg.RunLogger
	if runLog == nil {
		runLog = logger
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	h := &Host{
		world:         w,
		settings:      s,
		sinks:         cfg.Sinks,
		log:           logger,
		now:           now,
		tickInterval:  tick,
		snapshotEvery: cfg.SnapshotEvery,
		execReq:       make(chan execReq, 16),
		stateReq:      make(chan stateReq, 4),
		snapReq:       make(chan snapReq, 4),
	}
	h.runner = replenish.NewRunner(w, cfg.Rng, runLog)
	h.trigger = schedule.New(h.runner, s.Current,
		schedule.WithClock(now),
		schedule.WithLogger(logger),
		schedule.WithObserver(func(req replenish.Request, res replenish.Result, err error, started time.Time, took time.Duration) {
			h.record(replenish.TriggerSchedule, req, res, err, started, took)
		}),
	)
	h.handler = command.NewHandler(h.runner, s, h.trigger, logger)
	return h
}

// SetSnapshotSink routes RequestSnapshot and periodic snapshots to ch.
func (h *Host) SetSnapshotSink(ch chan<- snapshot.WorldV1) { h.snapshotSink = ch }

func (h *Host) WorldID() string { return h.world.ID() }

func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	lastSnap := h.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-h.execReq:
			req.resp <- h.exec(req.line)
		case req := <-h.stateReq:
			req.resp <- h.state()
		case req := <-h.snapReq:
			req.resp <- h.snapshot(req.toSink)
		case <-ticker.C:
			h.trigger.Tick()
			if h.snapshotEvery > 0 && h.now().Sub(lastSnap) >= h.snapshotEvery {
				lastSnap = h.now()
				if r := h.snapshot(true); r.err != nil {
					h.log.Printf("periodic snapshot: %v", r.err)
				}
			}
		}
	}
}

// Exec runs one operator command line on the host goroutine.
func (h *Host) Exec(ctx context.Context, line string) (command.Reply, error) {
	resp := make(chan command.Reply, 1)
	select {
	case h.execReq <- execReq{line: line, resp: resp}:
	case <-ctx.Done():
		return command.Reply{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return command.Reply{}, ctx.Err()
	}
}

// Snapshot exports the world as it is between runs.
func (h *Host) Snapshot(ctx context.Context) (snapshot.WorldV1, error) {
	r, err := h.requestSnapshot(ctx, false)
	if err != nil {
		return snapshot.WorldV1{}, err
	}
	return r.snap, r.err
}

// RequestSnapshot asks the host goroutine to hand a snapshot to the sink.
func (h *Host) RequestSnapshot(ctx context.Context) (runs uint64, err error) {
	r, err := h.requestSnapshot(ctx, true)
	if err != nil {
		return 0, err
	}
	return r.snap.Header.Runs, r.err
}

func (h *Host) requestSnapshot(ctx context.Context, toSink bool) (snapResp, error) {
	resp := make(chan snapResp, 1)
	select {
	case h.snapReq <- snapReq{toSink: toSink, resp: resp}:
	case <-ctx.Done():
		return snapResp{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return snapResp{}, ctx.Err()
	}
}

func (h *Host) exec(line string) command.Reply {
	reply := h.handler.Execute(line)
	if run := reply.Run; run != nil {
		h.record(replenish.TriggerCommand, run.Request, run.Result, run.Err, run.Started, run.Took)
	}
	return reply
}

func (h *Host) snapshot(toSink bool) snapResp {
	snap := h.world.ExportSnapshot(h.runs.Load(), h.now())
	if !toSink {
		return snapResp{snap: snap}
	}
	if h.snapshotSink == nil {
		return snapResp{snap: snapshot.WorldV1{Header: snap.Header}, err: errors.New("no snapshot sink")}
	}
	select {
	case h.snapshotSink <- snap:
		return snapResp{snap: snapshot.WorldV1{Header: snap.Header}}
	default:
		return snapResp{snap: snapshot.WorldV1{Header: snap.Header}, err: ErrSnapshotBusy}
	}
}

// record builds the run record and fans it out to every sink. Sink failures
// are logged and counted; they never fail the run.
func (h *Host) record(trigger replenish.Trigger, req replenish.Request, res replenish.Result, runErr error, started time.Time, took time.Duration) {
	h.runs.Add(1)
	h.metrics.observe(trigger, res)

	rec := replenish.Record{
		RunID:      uuid.NewString(),
		Trigger:    trigger,
		StartedAt:  started.UTC(),
		DurationMS: took.Milliseconds(),
		Request:    req,
		Result:     res,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	for _, s := range h.sinks {
		if s == nil {
			continue
		}
		if err := s.WriteRun(rec); err != nil {
			h.metrics.sinkErrors.Add(1)
			h.log.Printf("record run %s: %v", rec.RunID, err)
		}
	}
}
