package world

import (
	"replenisher/internal/replenish"
	"replenisher/internal/sim/tile"
)

const chestSlots = 40

// Item ids rolled into new chests, shallow to deep.
var lootTable = [][]int{
	{22, 20, 8, 28},       // iron bar, copper bar, torch, healing potion
	{21, 19, 282, 188},    // silver bar, gold bar, glowstick, healing potion
	{175, 188, 2350, 300}, // hellstone bar, healing potion, recall, battle potion
}

// Chests returns a deep copy of the chest list.
func (w *World) Chests() []replenish.Chest {
	out := make([]replenish.Chest, len(w.chests))
	for i, c := range w.chests {
		c.Items = append([]replenish.Item(nil), c.Items...)
		out[i] = c
	}
	return out
}

// KillChest removes the chest with c's id and clears its tiles. Unknown ids
// are ignored.
func (w *World) KillChest(c replenish.Chest) {
	for i := range w.chests {
		if w.chests[i].ID != c.ID {
			continue
		}
		cur := w.chests[i]
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				if w.TileAt(cur.X+dx, cur.Y+dy) == tile.Chest {
					w.set(cur.X+dx, cur.Y+dy, tile.Air)
				}
			}
		}
		w.chests = append(w.chests[:i], w.chests[i+1:]...)
		return
	}
}

// EmptyChest clears every slot of the chest with the given id.
func (w *World) EmptyChest(id int) bool {
	for i := range w.chests {
		if w.chests[i].ID == id {
			w.chests[i].Items = make([]replenish.Item, 0, chestSlots)
			return true
		}
	}
	return false
}

func (w *World) rollLoot(y int) []replenish.Item {
	tier := 0
	switch {
	case y >= w.underworldTop():
		tier = 2
	case y > w.surface+(w.underworldTop()-w.surface)/2:
		tier = 1
	}
	table := lootTable[tier]
	n := 2 + w.rng.IntN(3)
	items := make([]replenish.Item, 0, chestSlots)
	for i := 0; i < n; i++ {
		items = append(items, replenish.Item{
			ID:    table[w.rng.IntN(len(table))],
			Stack: 1 + w.rng.IntN(12),
		})
	}
	return items
}
