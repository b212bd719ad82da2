package replenish

import (
	"errors"
	"fmt"

	"replenisher/internal/sim/tile"
)

// MaxAttempts bounds every run regardless of its target.
const MaxAttempts = 10000

var (
	ErrUnknownKind   = errors.New("unknown resource kind")
	ErrInvalidTarget = errors.New("target must be >= 0")
	ErrOreNotFound   = tile.ErrOreNotFound
)

// Request describes one run. OreSubtype is only read for KindOre.
type Request struct {
	Kind           Kind   `json:"kind"`
	Target         int    `json:"target"`
	OreSubtype     string `json:"ore_subtype,omitempty"`
	AllowProtected bool   `json:"allow_protected"`
}

func (r Request) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(r.Kind))
	}
	if r.Target < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTarget, r.Target)
	}
	return nil
}

// Result reports a finished run.
//
// Blocked counts attempts rejected before any primitive was invoked
// (protected location, pyramid pre-check, empty sampling band). Faults counts
// attempts whose primitive panicked. Both are included in Attempted.
type Result struct {
	Kind      Kind         `json:"kind"`
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Blocked   int          `json:"blocked"`
	Faults    int          `json:"faults"`
	Sweep     *SweepResult `json:"sweep,omitempty"`
}

// SweepResult is the outcome of a chest sweep (chests with target 0).
type SweepResult struct {
	Removed int `json:"removed"`
	Seen    int `json:"seen"`
}

type Item struct {
	ID    int `json:"id"`
	Stack int `json:"stack"`
}

// Chest is an existing chest structure; X,Y is its top-left tile.
type Chest struct {
	ID    int    `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Items []Item `json:"items"`
}

// Empty reports whether no slot holds an item.
func (c Chest) Empty() bool {
	for _, it := range c.Items {
		if it.ID != 0 {
			return false
		}
	}
	return true
}

// World is the placement service a Runner drives. Coordinates are tile
// columns (x) and rows (y), with y growing downwards.
type World interface {
	Width() int
	Height() int
	// Surface is the row where the underground starts.
	Surface() int
	// OceanDistance is the reserved ocean margin on each horizontal edge.
	OceanDistance() int
	IsProtected(x, y int) bool
	TileAt(x, y int) tile.ID

	OreRunner(x, y int, strength float64, steps int, ore tile.ID)
	AddBuriedChest(x, y int) bool
	PlacePot(x, y int) bool
	AddLifeCrystal(x, y int) bool
	PlaceAltar(x, y int)
	AddTrees()
	FloatingIsland(x, y int)
	Pyramid(x, y int) bool

	// Chests returns a copy of the current chest list.
	Chests() []Chest
	KillChest(c Chest)
}
