package replenish

import (
	"errors"
	"math/rand/v2"
	"testing"

	"replenisher/internal/sim/tile"
)

type fakeWorld struct {
	width, height, surface, ocean int

	succeed   bool
	protected func(x, y int) bool
	tileAt    func(x, y int) tile.ID
	panicOn   func(call int) bool

	placements int
	treePasses int
	protChecks int
	killed     []Chest
	chests     []Chest
	ys         []int
	xs         []int
	oreSteps   []int
	ores       []tile.ID
	altars     map[[2]int]bool
}

func newFakeWorld(succeed bool) *fakeWorld {
	return &fakeWorld{width: 4200, height: 1200, surface: 300, ocean: 250, succeed: succeed}
}

func (f *fakeWorld) Width() int         { return f.width }
func (f *fakeWorld) Height() int        { return f.height }
func (f *fakeWorld) Surface() int       { return f.surface }
func (f *fakeWorld) OceanDistance() int { return f.ocean }

func (f *fakeWorld) IsProtected(x, y int) bool {
	f.protChecks++
	if f.protected == nil {
		return false
	}
	return f.protected(x, y)
}

func (f *fakeWorld) TileAt(x, y int) tile.ID {
	if f.altars[[2]int{x, y}] {
		return tile.DemonAltar
	}
	if f.tileAt != nil {
		return f.tileAt(x, y)
	}
	return tile.Stone
}

func (f *fakeWorld) place(x, y int) bool {
	f.placements++
	f.xs = append(f.xs, x)
	f.ys = append(f.ys, y)
	if f.panicOn != nil && f.panicOn(f.placements) {
		panic("placement exploded")
	}
	return f.succeed
}

func (f *fakeWorld) OreRunner(x, y int, strength float64, steps int, ore tile.ID) {
	f.place(x, y)
	f.oreSteps = append(f.oreSteps, steps)
	f.ores = append(f.ores, ore)
}
func (f *fakeWorld) AddBuriedChest(x, y int) bool { return f.place(x, y) }
func (f *fakeWorld) PlacePot(x, y int) bool       { return f.place(x, y) }
func (f *fakeWorld) AddLifeCrystal(x, y int) bool { return f.place(x, y) }
func (f *fakeWorld) PlaceAltar(x, y int) {
	if f.place(x, y) {
		if f.altars == nil {
			f.altars = make(map[[2]int]bool)
		}
		f.altars[[2]int{x, y}] = true
	}
}
func (f *fakeWorld) AddTrees()                    { f.treePasses++ }
func (f *fakeWorld) FloatingIsland(x, y int)      { f.place(x, y) }
func (f *fakeWorld) Pyramid(x, y int) bool        { return f.place(x, y) }

func (f *fakeWorld) Chests() []Chest {
	out := make([]Chest, len(f.chests))
	copy(out, f.chests)
	return out
}

func (f *fakeWorld) KillChest(c Chest) { f.killed = append(f.killed, c) }

func newTestRunner(w World) *Runner {
	return NewRunner(w, rand.New(rand.NewPCG(1, 2)), nil)
}

func checkInvariants(t *testing.T, req Request, res Result) {
	t.Helper()
	if res.Attempted > MaxAttempts {
		t.Fatalf("attempted=%d exceeds MaxAttempts", res.Attempted)
	}
	if res.Succeeded > res.Attempted || res.Succeeded > req.Target {
		t.Fatalf("succeeded=%d attempted=%d target=%d", res.Succeeded, res.Attempted, req.Target)
	}
	if res.Blocked+res.Faults > res.Attempted {
		t.Fatalf("blocked+faults=%d exceeds attempted=%d", res.Blocked+res.Faults, res.Attempted)
	}
}

func TestReplenish_ZeroTargetDoesNothing(t *testing.T) {
	for _, k := range Kinds() {
		if k == KindChests {
			continue
		}
		w := newFakeWorld(true)
		req := Request{Kind: k, Target: 0, OreSubtype: "copper"}
		res, err := newTestRunner(w).Replenish(req)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if res.Attempted != 0 || res.Succeeded != 0 {
			t.Fatalf("%s: got %+v, want zero", k, res)
		}
		if w.placements != 0 || w.treePasses != 0 {
			t.Fatalf("%s: world touched on zero target", k)
		}
	}
}

func TestReplenish_AlwaysSucceedStopsAtTarget(t *testing.T) {
	for _, k := range Kinds() {
		w := newFakeWorld(true)
		w.tileAt = func(x, y int) tile.ID { return tile.Sand }
		w.ocean = 0
		req := Request{Kind: k, Target: 7, OreSubtype: "iron"}
		res, err := newTestRunner(w).Replenish(req)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		checkInvariants(t, req, res)
		if res.Attempted != 7 || res.Succeeded != 7 {
			t.Fatalf("%s: got %+v, want 7/7", k, res)
		}
	}
}

func TestReplenish_AlwaysFailExhaustsBudget(t *testing.T) {
	w := newFakeWorld(false)
	req := Request{Kind: KindPots, Target: 3}
	res, err := newTestRunner(w).Replenish(req)
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	checkInvariants(t, req, res)
	if res.Attempted != MaxAttempts || res.Succeeded != 0 {
		t.Fatalf("got %+v, want %d/0", res, MaxAttempts)
	}
	if w.placements != MaxAttempts {
		t.Fatalf("placements=%d want %d", w.placements, MaxAttempts)
	}
}

func TestReplenish_OreExample(t *testing.T) {
	w := newFakeWorld(true)
	req := Request{Kind: KindOre, Target: 5, OreSubtype: "Copper", AllowProtected: true}
	res, err := newTestRunner(w).Replenish(req)
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if res.Attempted != 5 || res.Succeeded != 5 {
		t.Fatalf("got %+v, want 5/5", res)
	}
	if w.protChecks != 0 {
		t.Fatalf("protection should not be consulted when AllowProtected is set")
	}
	for i, id := range w.ores {
		if id != tile.Copper || w.oreSteps[i] != 5 {
			t.Fatalf("ore call %d: id=%v steps=%d", i, id, w.oreSteps[i])
		}
	}
}

func TestReplenish_UnknownOre(t *testing.T) {
	w := newFakeWorld(true)
	res, err := newTestRunner(w).Replenish(Request{Kind: KindOre, Target: 5, OreSubtype: "Unobtainium"})
	if !errors.Is(err, ErrOreNotFound) {
		t.Fatalf("expected ErrOreNotFound, got %v", err)
	}
	if res.Attempted != 0 || res.Succeeded != 0 || w.placements != 0 {
		t.Fatalf("unknown ore must not touch the world: res=%+v placements=%d", res, w.placements)
	}
}

func TestReplenish_InvalidRequest(t *testing.T) {
	w := newFakeWorld(true)
	if _, err := newTestRunner(w).Replenish(Request{Kind: "gems", Target: 1}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := newTestRunner(w).Replenish(Request{Kind: KindPots, Target: -1}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
	if w.placements != 0 {
		t.Fatalf("invalid requests must not touch the world")
	}
}

func TestReplenish_ProtectedAreasBlock(t *testing.T) {
	w := newFakeWorld(true)
	w.protected = func(x, y int) bool { return true }
	req := Request{Kind: KindLifeCrystals, Target: 2}
	res, err := newTestRunner(w).Replenish(req)
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if w.placements != 0 {
		t.Fatalf("protected locations must never reach the primitive")
	}
	if res.Attempted != MaxAttempts || res.Blocked != MaxAttempts || res.Succeeded != 0 {
		t.Fatalf("got %+v", res)
	}

	w2 := newFakeWorld(true)
	w2.protected = func(x, y int) bool { return true }
	res, err = newTestRunner(w2).Replenish(Request{Kind: KindLifeCrystals, Target: 2, AllowProtected: true})
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if res.Succeeded != 2 || w2.placements != 2 {
		t.Fatalf("AllowProtected should bypass protection: res=%+v placements=%d", res, w2.placements)
	}
}

func TestReplenish_ChestSweep(t *testing.T) {
	w := newFakeWorld(true)
	w.chests = []Chest{
		{ID: 1, X: 10, Y: 500},
		{ID: 2, X: 20, Y: 500, Items: []Item{{ID: 0}, {ID: 73, Stack: 3}}},
		{ID: 3, X: 30, Y: 500, Items: []Item{{ID: 0}, {ID: 0}}},
	}
	r := newTestRunner(w)
	before := r.rng.Uint64()
	r.rng = rand.New(rand.NewPCG(1, 2))
	res, err := r.Replenish(Request{Kind: KindChests, Target: 0})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Sweep == nil || res.Sweep.Removed != 2 || res.Sweep.Seen != 3 {
		t.Fatalf("sweep=%+v want removed=2 seen=3", res.Sweep)
	}
	if res.Attempted != 0 || w.placements != 0 {
		t.Fatalf("sweep must not sample: %+v", res)
	}
	if len(w.killed) != 2 || w.killed[0].ID != 1 || w.killed[1].ID != 3 {
		t.Fatalf("killed=%+v", w.killed)
	}
	if r.rng.Uint64() != before {
		t.Fatalf("sweep consumed randomness")
	}
}

func TestReplenish_PyramidOceanMargin(t *testing.T) {
	w := newFakeWorld(true)
	w.width = 600
	w.ocean = 301 // every sampled x is inside one of the margins
	w.tileAt = func(x, y int) tile.ID { return tile.Sand }
	res, err := newTestRunner(w).Replenish(Request{Kind: KindPyramids, Target: 1, AllowProtected: true})
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if w.placements != 0 {
		t.Fatalf("pyramid placement invoked inside the ocean margin")
	}
	if res.Succeeded != 0 || res.Attempted != MaxAttempts {
		t.Fatalf("got %+v", res)
	}
}

func TestReplenish_PyramidNeedsSand(t *testing.T) {
	w := newFakeWorld(true)
	w.tileAt = func(x, y int) tile.ID { return tile.Dirt }
	res, _ := newTestRunner(w).Replenish(Request{Kind: KindPyramids, Target: 1})
	if w.placements != 0 || res.Succeeded != 0 {
		t.Fatalf("pyramid placed on non-sand: res=%+v", res)
	}
}

func TestReplenish_AltarPostCheck(t *testing.T) {
	w := newFakeWorld(false)
	res, _ := newTestRunner(w).Replenish(Request{Kind: KindAltars, Target: 1})
	if res.Succeeded != 0 || w.placements != MaxAttempts {
		t.Fatalf("altar without altar tile must fail: res=%+v placements=%d", res, w.placements)
	}

	w = newFakeWorld(true)
	res, _ = newTestRunner(w).Replenish(Request{Kind: KindAltars, Target: 3})
	if res.Succeeded != 3 || res.Attempted != 3 || len(w.altars) != 3 {
		t.Fatalf("altars: res=%+v altars=%d", res, len(w.altars))
	}
}

func TestReplenish_ExistingAltarDoesNotCount(t *testing.T) {
	w := newFakeWorld(true)
	w.tileAt = func(x, y int) tile.ID { return tile.DemonAltar }
	res, _ := newTestRunner(w).Replenish(Request{Kind: KindAltars, Target: 1})
	if res.Succeeded != 0 || w.placements != 0 {
		t.Fatalf("pre-existing altar counted: res=%+v placements=%d", res, w.placements)
	}
}

func TestReplenish_TreesDoNotSample(t *testing.T) {
	w := newFakeWorld(false)
	res, err := newTestRunner(w).Replenish(Request{Kind: KindTrees, Target: 4})
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if res.Attempted != 4 || res.Succeeded != 4 || w.treePasses != 4 {
		t.Fatalf("trees: res=%+v passes=%d", res, w.treePasses)
	}
	if w.protChecks != 0 || w.placements != 0 {
		t.Fatalf("trees must not sample coordinates")
	}
}

func TestReplenish_PanicsCountAsFaults(t *testing.T) {
	w := newFakeWorld(true)
	w.panicOn = func(call int) bool { return call%2 == 1 }
	req := Request{Kind: KindChests, Target: 3}
	res, err := newTestRunner(w).Replenish(req)
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	checkInvariants(t, req, res)
	if res.Succeeded != 3 || res.Faults != 3 || res.Attempted != 6 {
		t.Fatalf("got %+v, want 6 attempts 3 faults 3 placed", res)
	}
}

func TestReplenish_SamplingBands(t *testing.T) {
	cases := []struct {
		kind   Kind
		ore    string
		lo, hi int
	}{
		{KindOre, "copper", 288, 1200},
		{KindOre, "hellstone", 1000, 1200},
		{KindChests, "", 270, 1200},
		{KindPots, "", 288, 1200},
		{KindLifeCrystals, "", 288, 1200},
		{KindFloatingIsland, "", 66, 105},
		{KindPyramids, "", 270, 360},
	}
	for _, c := range cases {
		w := newFakeWorld(false)
		w.tileAt = func(x, y int) tile.ID { return tile.Sand }
		w.ocean = 0
		_, err := newTestRunner(w).Replenish(Request{Kind: c.kind, Target: 1, OreSubtype: c.ore})
		if err != nil {
			t.Fatalf("%s: %v", c.kind, err)
		}
		if len(w.ys) == 0 {
			t.Fatalf("%s: no placements", c.kind)
		}
		for i, y := range w.ys {
			if y < c.lo || y >= c.hi {
				t.Fatalf("%s/%s: y=%d outside [%d,%d)", c.kind, c.ore, y, c.lo, c.hi)
			}
			if x := w.xs[i]; x < 1 || x >= w.width {
				t.Fatalf("%s: x=%d outside [1,%d)", c.kind, x, w.width)
			}
		}
	}
}

func TestReplenish_EmptyBandIsBlocked(t *testing.T) {
	w := newFakeWorld(true)
	w.surface = 0
	res, err := newTestRunner(w).Replenish(Request{Kind: KindFloatingIsland, Target: 1})
	if err != nil {
		t.Fatalf("replenish: %v", err)
	}
	if w.placements != 0 || res.Blocked != MaxAttempts {
		t.Fatalf("empty band should block every attempt: %+v", res)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("LifeCrystals"); err != nil || k != KindLifeCrystals {
		t.Fatalf("ParseKind: k=%q err=%v", k, err)
	}
	if _, err := ParseKind("pyramid"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if KindFloatingIsland.Title() != "Floatingisland" {
		t.Fatalf("Title=%q", KindFloatingIsland.Title())
	}
}
