package world

import (
	"math/rand/v2"

	"replenisher/internal/replenish"
	"replenisher/internal/sim/tile"
)

// World is an in-memory tile world. It is not safe for concurrent use; the
// host loop owns it.
type World struct {
	id      string
	seed    int64
	width   int
	height  int
	surface int
	ocean   int

	tiles     []tile.ID
	chests    []replenish.Chest
	nextChest int
	regions   []Region

	rng *rand.Rand
}

var _ replenish.World = (*World)(nil)

// Region is a protected rectangle, corners inclusive.
type Region struct {
	Name string `json:"name"`
	X1   int    `json:"x1"`
	Y1   int    `json:"y1"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
}

func (r Region) Contains(x, y int) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

func newEmpty(id string, seed int64, width, height, surface, ocean int) *World {
	w := &World{
		id:        id,
		seed:      seed,
		width:     width,
		height:    height,
		surface:   surface,
		ocean:     ocean,
		tiles:     make([]tile.ID, width*height),
		nextChest: 1,
		rng:       rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
	for i := range w.tiles {
		w.tiles[i] = tile.Air
	}
	return w
}

func (w *World) ID() string         { return w.id }
func (w *World) Seed() int64        { return w.seed }
func (w *World) Width() int         { return w.width }
func (w *World) Height() int        { return w.height }
func (w *World) Surface() int       { return w.surface }
func (w *World) OceanDistance() int { return w.ocean }

func (w *World) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < w.width && y < w.height
}

// TileAt returns Air outside the world.
func (w *World) TileAt(x, y int) tile.ID {
	if !w.inBounds(x, y) {
		return tile.Air
	}
	return w.tiles[x+y*w.width]
}

func (w *World) set(x, y int, id tile.ID) {
	if w.inBounds(x, y) {
		w.tiles[x+y*w.width] = id
	}
}

// SetTile overwrites one cell. Out-of-bounds writes are ignored.
func (w *World) SetTile(x, y int, id tile.ID) { w.set(x, y, id) }

func (w *World) IsProtected(x, y int) bool {
	for _, r := range w.regions {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}

func (w *World) Regions() []Region {
	out := make([]Region, len(w.regions))
	copy(out, w.regions)
	return out
}

// AddRegion replaces any region with the same name.
func (w *World) AddRegion(r Region) {
	for i := range w.regions {
		if w.regions[i].Name == r.Name {
			w.regions[i] = r
			return
		}
	}
	w.regions = append(w.regions, r)
}

func (w *World) RemoveRegion(name string) bool {
	for i := range w.regions {
		if w.regions[i].Name == name {
			w.regions = append(w.regions[:i], w.regions[i+1:]...)
			return true
		}
	}
	return false
}

// topSolid returns the first solid row of column x, or height if none.
func (w *World) topSolid(x int) int {
	for y := 0; y < w.height; y++ {
		if tile.Solid(w.TileAt(x, y)) {
			return y
		}
	}
	return w.height
}

// floorBelow walks down from (x,y) through air and returns the last air row
// above a solid tile. ok is false when (x,y) is not air or no floor is found
// within maxDrop rows.
func (w *World) floorBelow(x, y, maxDrop int) (int, bool) {
	if w.TileAt(x, y) != tile.Air {
		return 0, false
	}
	for d := 0; d < maxDrop; d++ {
		cy := y + d
		if cy+1 >= w.height {
			return 0, false
		}
		below := w.TileAt(x, cy+1)
		if tile.Solid(below) {
			return cy, true
		}
		if below != tile.Air {
			return 0, false
		}
	}
	return 0, false
}
