package replenish

import (
	"io"
	"log"
	"math/rand/v2"
	"time"

	"replenisher/internal/sim/tile"
)

const (
	oreStrength    = 2.0
	belowSurface   = 12
	hellstoneDepth = 200
)

type outcome int

const (
	outcomeFailed outcome = iota
	outcomePlaced
	outcomeBlocked
	outcomeFault
)

// Runner executes replenish runs against a World. It is not safe for
// concurrent use; the caller serialises runs with every other world mutation.
type Runner struct {
	world World
	rng   *rand.Rand
	log   *log.Logger
}

// NewRunner builds a runner. A nil rng is seeded from the clock and a nil
// logger discards output.
func NewRunner(w World, rng *rand.Rand, logger *log.Logger) *Runner {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>17|1))
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{world: w, rng: rng, log: logger}
}

// Replenish samples random locations until req.Target placements succeed or
// MaxAttempts attempts have been made.
//
// An ore request whose subtype cannot be resolved returns ErrOreNotFound
// before any sampling. Chests with a zero target sweep empty chests instead.
func (r *Runner) Replenish(req Request) (Result, error) {
	res := Result{Kind: req.Kind}
	if err := req.Validate(); err != nil {
		return res, err
	}

	var ore tile.ID
	if req.Kind == KindOre {
		id, err := tile.LookupOre(req.OreSubtype)
		if err != nil {
			return res, err
		}
		ore = id
	}

	if req.Kind == KindChests && req.Target == 0 {
		sw := r.sweepChests()
		res.Sweep = &sw
		return res, nil
	}

	var firstFault any
	for res.Attempted < MaxAttempts && res.Succeeded < req.Target {
		res.Attempted++
		out, fault := r.attempt(req, ore)
		switch out {
		case outcomePlaced:
			res.Succeeded++
		case outcomeBlocked:
			res.Blocked++
		case outcomeFault:
			res.Faults++
			if firstFault == nil {
				firstFault = fault
			}
		}
	}
	if res.Faults > 0 {
		r.log.Printf("%s: %d placement faults (first: %v)", req.Kind, res.Faults, firstFault)
	}
	return res, nil
}

// attempt runs one sampling step. Panics from the world are reported as
// outcomeFault with the recovered value.
func (r *Runner) attempt(req Request, ore tile.ID) (out outcome, fault any) {
	defer func() {
		if p := recover(); p != nil {
			out, fault = outcomeFault, p
		}
	}()

	w := r.world
	if req.Kind == KindTrees {
		w.AddTrees()
		return outcomePlaced, nil
	}

	x, ok := r.sampleX()
	if !ok {
		return outcomeBlocked, nil
	}
	lo, hi := r.band(req.Kind, ore)
	y, ok := r.sampleY(lo, hi)
	if !ok {
		return outcomeBlocked, nil
	}
	if !req.AllowProtected && w.IsProtected(x, y) {
		return outcomeBlocked, nil
	}

	placed := false
	switch req.Kind {
	case KindOre:
		w.OreRunner(x, y, oreStrength, req.Target, ore)
		placed = true
	case KindChests:
		placed = w.AddBuriedChest(x, y)
	case KindPots:
		placed = w.PlacePot(x, y)
	case KindLifeCrystals:
		placed = w.AddLifeCrystal(x, y)
	case KindAltars:
		if w.TileAt(x, y) == tile.DemonAltar {
			return outcomeFailed, nil
		}
		w.PlaceAltar(x, y)
		placed = w.TileAt(x, y) == tile.DemonAltar
	case KindFloatingIsland:
		w.FloatingIsland(x, y)
		placed = true
	case KindPyramids:
		ocean := w.OceanDistance()
		if w.TileAt(x, y) != tile.Sand || x > w.Width()-ocean || x < ocean {
			return outcomeBlocked, nil
		}
		placed = w.Pyramid(x, y)
	}
	if placed {
		return outcomePlaced, nil
	}
	return outcomeFailed, nil
}

// band returns the half-open row range [lo, hi) sampled for kind.
func (r *Runner) band(kind Kind, ore tile.ID) (lo, hi int) {
	surface := float64(r.world.Surface())
	height := r.world.Height()
	switch kind {
	case KindOre:
		if ore == tile.Hellstone {
			return height - hellstoneDepth, height
		}
		return int(surface) - belowSurface, height
	case KindChests:
		return int(surface * 0.90), height
	case KindFloatingIsland:
		return int(surface * 0.22), int(surface * 0.35)
	case KindPyramids:
		return int(surface * 0.9), int(surface * 1.2)
	default:
		return int(surface) - belowSurface, height
	}
}

func (r *Runner) sampleX() (int, bool) {
	width := r.world.Width()
	if width <= 1 {
		return 0, false
	}
	return 1 + r.rng.IntN(width-1), true
}

// sampleY draws from [lo, hi) after clamping the band into the world.
func (r *Runner) sampleY(lo, hi int) (int, bool) {
	if lo < 0 {
		lo = 0
	}
	if h := r.world.Height(); hi > h {
		hi = h
	}
	if lo >= hi {
		return 0, false
	}
	return lo + r.rng.IntN(hi-lo), true
}

func (r *Runner) sweepChests() SweepResult {
	var sw SweepResult
	for _, c := range r.world.Chests() {
		sw.Seen++
		if !c.Empty() {
			continue
		}
		r.world.KillChest(c)
		sw.Removed++
	}
	return sw
}
