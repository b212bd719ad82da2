package schedule

import (
	"io"
	"log"
	"time"

	"replenisher/internal/replenish"
	"replenisher/internal/settings"
)

// Runner is the part of replenish.Runner the trigger needs.
type Runner interface {
	Replenish(req replenish.Request) (replenish.Result, error)
}

// Observer is told about every scheduled run, including failed ones.
type Observer func(req replenish.Request, res replenish.Result, err error, started time.Time, took time.Duration)

// Trigger decides when the configured refill interval has elapsed and then
// runs one request per enabled kind. Tick must be called from the goroutine
// that owns the world.
type Trigger struct {
	runner   Runner
	settings func() settings.Settings
	now      func() time.Time
	log      *log.Logger
	observer Observer

	lastRun time.Time
}

type Option func(*Trigger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

func WithObserver(o Observer) Option {
	return func(t *Trigger) { t.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(t *Trigger) { t.log = l }
}

// New builds a trigger whose interval starts counting now.
func New(r Runner, current func() settings.Settings, opts ...Option) *Trigger {
	t := &Trigger{
		runner:   r,
		settings: current,
		now:      time.Now,
		log:      log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(t)
	}
	t.lastRun = t.now()
	return t
}

func (t *Trigger) LastRun() time.Time { return t.lastRun }

// NextDue is the earliest time Tick will start a run with the current
// settings.
func (t *Trigger) NextDue() time.Time {
	return t.lastRun.Add(t.settings().Interval())
}

// Due reports whether a run would start if Tick were called now.
func (t *Trigger) Due() bool {
	s := t.settings()
	if !s.AutoRefill {
		return false
	}
	return t.now().Sub(t.lastRun) >= s.Interval()
}

// Tick starts the scheduled runs if the interval has elapsed and returns the
// number of runs executed. lastRun moves before the first run starts, so a
// slow run never causes an immediate re-trigger.
func (t *Trigger) Tick() int {
	if !t.Due() {
		return 0
	}
	t.lastRun = t.now()

	reqs := Requests(t.settings())
	for _, req := range reqs {
		t.log.Printf("auto generating %s...", describe(req))
		started := t.now()
		res, err := t.runner.Replenish(req)
		took := t.now().Sub(started)
		if err != nil {
			t.log.Printf("auto %s: %v", describe(req), err)
		} else if res.Succeeded < req.Target {
			t.log.Printf("auto %s: generated %d of %d after %d attempts", describe(req), res.Succeeded, req.Target, res.Attempted)
		}
		if t.observer != nil {
			t.observer(req, res, err, started, took)
		}
	}
	return len(reqs)
}

// Requests expands settings into the ordered list of scheduled runs. Kinds
// that are disabled or have no positive amount are skipped; the chest sweep
// is never scheduled.
func Requests(s settings.Settings) []replenish.Request {
	allow := s.GenerateInProtectedAreas
	var out []replenish.Request
	add := func(k replenish.Kind, ks settings.KindSettings) {
		if ks.Enabled && ks.Amount > 0 {
			out = append(out, replenish.Request{Kind: k, Target: ks.Amount, AllowProtected: allow})
		}
	}

	add(replenish.KindChests, s.Chests)
	add(replenish.KindLifeCrystals, s.LifeCrystals)
	if s.Ores.Enabled && s.Ores.Amount > 0 {
		for _, name := range s.Ores.Types {
			out = append(out, replenish.Request{
				Kind:           replenish.KindOre,
				Target:         s.Ores.Amount,
				OreSubtype:     name,
				AllowProtected: allow,
			})
		}
	}
	add(replenish.KindPots, s.Pots)
	add(replenish.KindTrees, s.Trees)
	add(replenish.KindAltars, s.Altars)
	add(replenish.KindPyramids, s.Pyramids)
	add(replenish.KindFloatingIsland, s.FloatingIslands)
	return out
}

func describe(req replenish.Request) string {
	if req.Kind == replenish.KindOre {
		return string(req.Kind) + "/" + req.OreSubtype
	}
	return string(req.Kind)
}
