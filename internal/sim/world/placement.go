package world

import (
	"math"

	"replenisher/internal/replenish"
	"replenisher/internal/sim/mathx"
	"replenisher/internal/sim/tile"
)

const (
	maxOreSteps     = 64
	potDrop         = 24
	crystalDrop     = 24
	chestSpacing    = 8
	treeBatch       = 12
	treeMaxHeight   = 9
	islandHalfWidth = 14
	islandDepth     = 6
	pyramidHalfBase = 12
)

// OreRunner paints a random walk of discs of ore over natural tiles. Each
// step moves roughly one strength along a drifting heading.
func (w *World) OreRunner(x, y int, strength float64, steps int, ore tile.ID) {
	if steps > maxOreSteps {
		steps = maxOreSteps
	}
	if steps < 1 {
		steps = 1
	}
	if strength < 1 {
		strength = 1
	}
	fx, fy := float64(x), float64(y)
	heading := w.rng.Float64() * 2 * math.Pi
	for i := 0; i < steps; i++ {
		w.paintDisc(int(math.Round(fx)), int(math.Round(fy)), strength/2, ore)
		heading += (w.rng.Float64() - 0.5) * 1.2
		fx += math.Cos(heading) * strength
		fy += math.Sin(heading) * strength
	}
}

func (w *World) paintDisc(cx, cy int, radius float64, ore tile.ID) {
	r := int(math.Ceil(radius))
	r2 := radius * radius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) > r2+0.5 {
				continue
			}
			if tile.Natural(w.TileAt(cx+dx, cy+dy)) {
				w.set(cx+dx, cy+dy, ore)
			}
		}
	}
}

// AddBuriedChest places a 2x2 chest whose top-left is (x,y). The footprint
// must be air or natural ground, the row below must be solid, and no other
// chest may be within chestSpacing tiles.
func (w *World) AddBuriedChest(x, y int) bool {
	if y <= w.surface || !w.inBounds(x, y) || !w.inBounds(x+1, y+2) {
		return false
	}
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			id := w.TileAt(x+dx, y+dy)
			if id != tile.Air && !tile.Natural(id) {
				return false
			}
		}
	}
	if !tile.Solid(w.TileAt(x, y+2)) || !tile.Solid(w.TileAt(x+1, y+2)) {
		return false
	}
	for _, c := range w.chests {
		if mathx.AbsInt(c.X-x) < chestSpacing && mathx.AbsInt(c.Y-y) < chestSpacing {
			return false
		}
	}
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			w.set(x+dx, y+dy, tile.Chest)
		}
	}
	w.chests = append(w.chests, replenish.Chest{
		ID:    w.nextChest,
		X:     x,
		Y:     y,
		Items: w.rollLoot(y),
	})
	w.nextChest++
	return true
}

// PlacePot drops a pot from (x,y) to the first floor below it.
func (w *World) PlacePot(x, y int) bool {
	fy, ok := w.floorBelow(x, y, potDrop)
	if !ok {
		return false
	}
	w.set(x, fy, tile.Pot)
	return true
}

// AddLifeCrystal needs an air pocket two tiles high above a stone or dirt
// floor, underground only.
func (w *World) AddLifeCrystal(x, y int) bool {
	if y <= w.surface {
		return false
	}
	fy, ok := w.floorBelow(x, y, crystalDrop)
	if !ok || w.TileAt(x, fy-1) != tile.Air {
		return false
	}
	switch w.TileAt(x, fy+1) {
	case tile.Stone, tile.Dirt:
	default:
		return false
	}
	w.set(x, fy, tile.LifeCrystal)
	return true
}

// PlaceAltar puts a 3x2 altar with (x,y) as its bottom-center tile. Nothing
// is placed unless the footprint is empty and fully supported.
func (w *World) PlaceAltar(x, y int) {
	for dx := -1; dx <= 1; dx++ {
		if !w.inBounds(x+dx, y-1) || !w.inBounds(x+dx, y+1) {
			return
		}
		if w.TileAt(x+dx, y) != tile.Air || w.TileAt(x+dx, y-1) != tile.Air {
			return
		}
		if !tile.Solid(w.TileAt(x+dx, y+1)) {
			return
		}
	}
	for dx := -1; dx <= 1; dx++ {
		w.set(x+dx, y, tile.DemonAltar)
		w.set(x+dx, y-1, tile.DemonAltar)
	}
}

// AddTrees grows one batch of trees on random grass columns.
func (w *World) AddTrees() {
	lo, hi := w.ocean, w.width-w.ocean
	if hi-lo < 3 {
		return
	}
	for i := 0; i < treeBatch; i++ {
		x := lo + 1 + w.rng.IntN(hi-lo-2)
		top := w.topSolid(x)
		if top >= w.height || top < 1 || w.TileAt(x, top) != tile.Grass {
			continue
		}
		if w.TileAt(x-1, top-1) == tile.Tree || w.TileAt(x+1, top-1) == tile.Tree {
			continue
		}
		h := 4 + w.rng.IntN(treeMaxHeight-3)
		for dy := 1; dy <= h && top-dy >= 0; dy++ {
			if w.TileAt(x, top-dy) != tile.Air {
				break
			}
			w.set(x, top-dy, tile.Tree)
		}
	}
}

// FloatingIsland builds a lens of dirt centred on (x,y) capped with grass.
// Nothing is built when the lens or its tree would cover a structure.
func (w *World) FloatingIsland(x, y int) {
	if !w.overwritable(x, y-1) {
		return
	}
	for dx := -islandHalfWidth; dx <= islandHalfWidth; dx++ {
		for dy := 0; dy <= islandDepthAt(dx); dy++ {
			if w.inBounds(x+dx, y+dy) && !w.overwritable(x+dx, y+dy) {
				return
			}
		}
	}
	for dx := -islandHalfWidth; dx <= islandHalfWidth; dx++ {
		depth := islandDepthAt(dx)
		for dy := 0; dy <= depth; dy++ {
			id := tile.Dirt
			if dy == 0 {
				id = tile.Grass
			}
			if w.TileAt(x+dx, y+dy) == tile.Air && w.inBounds(x+dx, y+dy) {
				w.set(x+dx, y+dy, id)
			}
		}
	}
	w.set(x, y-1, tile.Tree)
}

func islandDepthAt(dx int) int {
	t := float64(dx) / float64(islandHalfWidth)
	return int(math.Round(float64(islandDepth) * math.Sqrt(1-t*t)))
}

// overwritable reports whether a structure may be built over the tile.
func (w *World) overwritable(x, y int) bool {
	if !w.inBounds(x, y) {
		return false
	}
	id := w.TileAt(x, y)
	return id == tile.Air || tile.Natural(id)
}

// Pyramid raises a sandstone brick pyramid whose base centre rests on the
// sand at (x,y), with a chest in the middle chamber. It fails when the
// structure would leave the world or cover anything but air and natural
// ground.
func (w *World) Pyramid(x, y int) bool {
	if !w.inBounds(x-pyramidHalfBase, y-pyramidHalfBase) || !w.inBounds(x+pyramidHalfBase, y) {
		return false
	}
	for row := 0; row <= pyramidHalfBase; row++ {
		half := pyramidHalfBase - row
		for dx := -half; dx <= half; dx++ {
			if !w.overwritable(x+dx, y-row) {
				return false
			}
		}
	}
	for row := 0; row <= pyramidHalfBase; row++ {
		half := pyramidHalfBase - row
		for dx := -half; dx <= half; dx++ {
			w.set(x+dx, y-row, tile.SandstoneBrick)
		}
	}
	cy := y - 3
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			w.set(x+dx, cy+dy, tile.Chest)
		}
	}
	w.chests = append(w.chests, replenish.Chest{ID: w.nextChest, X: x, Y: cy, Items: w.rollLoot(w.height)})
	w.nextChest++
	return true
}
