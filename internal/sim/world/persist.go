package world

import (
	"fmt"
	"math/rand/v2"
	"time"

	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
	"replenisher/internal/sim/tile"
)

// ExportSnapshot captures the full world state. runs is stored in the header
// for operators; the world itself does not count runs.
func (w *World) ExportSnapshot(runs uint64, now time.Time) snapshot.WorldV1 {
	tiles := make([]uint16, len(w.tiles))
	for i, id := range w.tiles {
		tiles[i] = uint16(id)
	}
	chests := make([]snapshot.ChestV1, 0, len(w.chests))
	for _, c := range w.chests {
		items := make([]snapshot.ItemV1, 0, len(c.Items))
		for _, it := range c.Items {
			items = append(items, snapshot.ItemV1{ID: it.ID, Stack: it.Stack})
		}
		chests = append(chests, snapshot.ChestV1{ID: c.ID, X: c.X, Y: c.Y, Items: items})
	}
	regions := make([]snapshot.RegionV1, 0, len(w.regions))
	for _, r := range w.regions {
		regions = append(regions, snapshot.RegionV1{Name: r.Name, X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2})
	}
	return snapshot.WorldV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.id,
			SavedAt: now.Unix(),
			Runs:    runs,
		},
		Seed:          w.seed,
		Width:         w.width,
		Height:        w.height,
		Surface:       w.surface,
		OceanDistance: w.ocean,
		Tiles:         tiles,
		Chests:        chests,
		NextChest:     w.nextChest,
		Regions:       regions,
	}
}

// ImportSnapshot rebuilds a world. The primitive rng is reseeded from the
// seed and the save time so a resumed world does not replay old placements.
func ImportSnapshot(s snapshot.WorldV1) (*World, error) {
	if s.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("%w: %d", snapshot.ErrVersion, s.Header.Version)
	}
	if s.Width <= 0 || s.Height <= 0 || len(s.Tiles) != s.Width*s.Height {
		return nil, fmt.Errorf("snapshot tiles: have %d, want %dx%d", len(s.Tiles), s.Width, s.Height)
	}
	w := newEmpty(s.Header.WorldID, s.Seed, s.Width, s.Height, s.Surface, s.OceanDistance)
	for i, id := range s.Tiles {
		w.tiles[i] = tile.ID(id)
	}
	for _, c := range s.Chests {
		items := make([]replenish.Item, 0, len(c.Items))
		for _, it := range c.Items {
			items = append(items, replenish.Item{ID: it.ID, Stack: it.Stack})
		}
		w.chests = append(w.chests, replenish.Chest{ID: c.ID, X: c.X, Y: c.Y, Items: items})
		if c.ID >= w.nextChest {
			w.nextChest = c.ID + 1
		}
	}
	if s.NextChest > w.nextChest {
		w.nextChest = s.NextChest
	}
	for _, r := range s.Regions {
		w.AddRegion(Region{Name: r.Name, X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2})
	}
	w.rng = rand.New(rand.NewPCG(uint64(s.Seed), uint64(s.Header.SavedAt)))
	return w, nil
}
