package world

import (
	"sort"

	"replenisher/internal/sim/tile"
)

// Stats counts the resources operators care about.
type Stats struct {
	Chests       int            `json:"chests"`
	EmptyChests  int            `json:"empty_chests"`
	Pots         int            `json:"pots"`
	LifeCrystals int            `json:"life_crystals"`
	Altars       int            `json:"altars"`
	TreeTiles    int            `json:"tree_tiles"`
	Ores         map[string]int `json:"ores"`
}

// Stats scans every tile. Altars are counted once per 3x2 footprint.
func (w *World) Stats() Stats {
	c := Stats{Ores: map[string]int{}}
	altarTiles := 0
	for _, id := range w.tiles {
		switch {
		case id == tile.Pot:
			c.Pots++
		case id == tile.LifeCrystal:
			c.LifeCrystals++
		case id == tile.DemonAltar:
			altarTiles++
		case id == tile.Tree:
			c.TreeTiles++
		case tile.IsOre(id):
			c.Ores[id.String()]++
		}
	}
	c.Altars = altarTiles / 6
	c.Chests = len(w.chests)
	for _, ch := range w.chests {
		if ch.Empty() {
			c.EmptyChests++
		}
	}
	return c
}

// OreNames returns the census ore keys sorted.
func (c Stats) OreNames() []string {
	out := make([]string, 0, len(c.Ores))
	for k := range c.Ores {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
