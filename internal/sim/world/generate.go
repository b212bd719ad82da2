package world

import (
	"replenisher/internal/sim/mathx"
	"replenisher/internal/sim/tile"
)

const (
	dirtDepth        = 24
	desertSandDepth  = 14
	underworldRows   = 200
	caveCell         = 4
	oreCell          = 3
	oceanWaterDepth  = 8
	surfaceStepWidth = 32
)

// Generate builds a fresh world from cfg. The same config always yields the
// same tiles; the primitives' own rng is seeded from cfg.Seed as well.
func Generate(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := newEmpty(cfg.ID, cfg.Seed, cfg.Width, cfg.Height, cfg.Surface, cfg.OceanDistance)
	for _, r := range cfg.Regions {
		w.AddRegion(Region{Name: r.Name, X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2})
	}
	for x := 0; x < w.width; x++ {
		w.generateColumn(cfg, x)
	}
	w.AddTrees()
	return w, nil
}

func (w *World) underworldTop() int {
	rows := underworldRows
	if rows > w.height/5 {
		rows = w.height / 5
	}
	return w.height - rows
}

// columnTop is the grass/sand row of column x: the surface line raised by a
// stepped per-region offset.
func (w *World) columnTop(x int) int {
	h := mathx.Hash1(w.seed, mathx.FloorDiv(x, surfaceStepWidth))
	top := w.surface - 16 + int(h%10)
	return mathx.ClampInt(top, 1, w.surface)
}

func (w *World) isOceanColumn(x int) bool {
	return x < w.ocean || x >= w.width-w.ocean
}

func biomeAt(seed int64, x, regionSize int) string {
	switch mathx.Hash1(seed^0x6b1a, mathx.FloorDiv(x, regionSize)) % 3 {
	case 2:
		return "DESERT"
	case 1:
		return "FOREST"
	default:
		return "PLAINS"
	}
}

func (w *World) generateColumn(cfg Config, x int) {
	top := w.columnTop(x)
	ocean := w.isOceanColumn(x)
	desert := !ocean && biomeAt(w.seed, x, cfg.BiomeRegionSize) == "DESERT"
	hell := w.underworldTop()

	if ocean {
		// Water sits on a sand bed slightly below the land line.
		for y := top; y < top+oceanWaterDepth && y < w.height; y++ {
			w.set(x, y, tile.Water)
		}
		top += oceanWaterDepth
	}

	for y := top; y < w.height; y++ {
		var id tile.ID
		switch {
		case y >= hell:
			id = tile.Ash
		case ocean && y < top+desertSandDepth:
			id = tile.Sand
		case desert && y < top+desertSandDepth:
			id = tile.Sand
		case y == top:
			id = tile.Grass
		case y < top+dirtDepth:
			id = tile.Dirt
		default:
			id = tile.Stone
		}

		if y > w.surface && y < hell && id != tile.Sand {
			if mathx.Permille(mathx.Hash2(w.seed, mathx.FloorDiv(x, caveCell), mathx.FloorDiv(y, caveCell))) < cfg.CavePermille {
				id = tile.Air
			} else if id == tile.Stone && mathx.Permille(mathx.Hash2(w.seed^0x0e0e, mathx.FloorDiv(x, oreCell), mathx.FloorDiv(y, oreCell))) < cfg.OrePermille {
				id = w.naturalOre(y)
			}
		}
		w.set(x, y, id)
	}
}

// naturalOre picks the ore seeded by generation at depth y.
func (w *World) naturalOre(y int) tile.ID {
	depth := y - w.surface
	span := w.underworldTop() - w.surface
	switch {
	case span <= 0 || depth < span/4:
		return tile.Copper
	case depth < span/2:
		return tile.Iron
	case depth < 3*span/4:
		return tile.Silver
	default:
		return tile.Gold
	}
}
