package world

import (
	"math/rand/v2"
	"testing"

	"replenisher/internal/replenish"
)

func TestRunnerAgainstGeneratedWorld(t *testing.T) {
	w, err := Generate(smallConfig())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	r := replenish.NewRunner(w, rand.New(rand.NewPCG(1, 2)), nil)

	res, err := r.Replenish(replenish.Request{Kind: replenish.KindOre, Target: 5, OreSubtype: "Copper"})
	if err != nil || res.Succeeded != 5 {
		t.Fatalf("ore: res=%+v err=%v", res, err)
	}

	before := w.Stats().Pots
	res, err = r.Replenish(replenish.Request{Kind: replenish.KindPots, Target: 10})
	if err != nil {
		t.Fatalf("pots: %v", err)
	}
	if res.Attempted > replenish.MaxAttempts || res.Faults != 0 {
		t.Fatalf("pots: res=%+v", res)
	}
	if got := w.Stats().Pots - before; got != res.Succeeded {
		t.Fatalf("pots in world=%d, reported=%d", got, res.Succeeded)
	}

	res, err = r.Replenish(replenish.Request{Kind: replenish.KindChests, Target: 3})
	if err != nil {
		t.Fatalf("chests: %v", err)
	}
	placed := res.Succeeded
	for _, c := range w.Chests() {
		w.EmptyChest(c.ID)
	}
	res, err = r.Replenish(replenish.Request{Kind: replenish.KindChests, Target: 0})
	if err != nil || res.Sweep == nil {
		t.Fatalf("sweep: res=%+v err=%v", res, err)
	}
	if res.Sweep.Removed != placed || len(w.Chests()) != 0 {
		t.Fatalf("sweep removed %d of %d placed", res.Sweep.Removed, placed)
	}
}

func TestRunnerRespectsProtection(t *testing.T) {
	cfg := smallConfig()
	cfg.Regions = []RegionSpec{{Name: "all", X1: 0, Y1: 0, X2: cfg.Width, Y2: cfg.Height}}
	w, err := Generate(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	r := replenish.NewRunner(w, rand.New(rand.NewPCG(3, 4)), nil)
	res, err := r.Replenish(replenish.Request{Kind: replenish.KindPots, Target: 2})
	if err != nil {
		t.Fatalf("pots: %v", err)
	}
	if res.Succeeded != 0 || res.Blocked != replenish.MaxAttempts {
		t.Fatalf("res=%+v", res)
	}
}
