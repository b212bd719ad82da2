package tile

import "strconv"

// ID is a tile type. Values for the natural tiles follow the host game's
// tile table so snapshots stay readable next to its own tooling.
type ID uint16

// Air marks an empty cell.
const Air ID = 0xFFFF

const (
	Dirt           ID = 0
	Stone          ID = 1
	Grass          ID = 2
	Tree           ID = 5
	Iron           ID = 6
	Copper         ID = 7
	Gold           ID = 8
	Silver         ID = 9
	LifeCrystal    ID = 12
	Chest          ID = 21
	Demonite       ID = 22
	DemonAltar     ID = 26
	Pot            ID = 28
	Meteorite      ID = 37
	Water          ID = 41 // host uses liquids; kept as a tile here
	Sand           ID = 53
	Ash            ID = 57
	Hellstone      ID = 58
	Cobalt         ID = 107
	Mythril        ID = 108
	Adamantite     ID = 111
	SandstoneBrick ID = 151
	Tin            ID = 166
	Lead           ID = 167
	Tungsten       ID = 168
	Platinum       ID = 169
	Cloud          ID = 189
	Crimtane       ID = 204
	Chlorophyte    ID = 211
	Palladium      ID = 221
	Orichalcum     ID = 222
	Titanium       ID = 223
)

var names = map[ID]string{
	Air:            "air",
	Dirt:           "dirt",
	Stone:          "stone",
	Grass:          "grass",
	Tree:           "tree",
	Iron:           "iron",
	Copper:         "copper",
	Gold:           "gold",
	Silver:         "silver",
	LifeCrystal:    "life_crystal",
	Chest:          "chest",
	Demonite:       "demonite",
	DemonAltar:     "demon_altar",
	Pot:            "pot",
	Meteorite:      "meteorite",
	Water:          "water",
	Sand:           "sand",
	Ash:            "ash",
	Hellstone:      "hellstone",
	Cobalt:         "cobalt",
	Mythril:        "mythril",
	Adamantite:     "adamantite",
	SandstoneBrick: "sandstone_brick",
	Tin:            "tin",
	Lead:           "lead",
	Tungsten:       "tungsten",
	Platinum:       "platinum",
	Cloud:          "cloud",
	Crimtane:       "crimtane",
	Chlorophyte:    "chlorophyte",
	Palladium:      "palladium",
	Orichalcum:     "orichalcum",
	Titanium:       "titanium",
}

func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return "tile_" + strconv.Itoa(int(id))
}

// Solid reports whether the tile blocks movement and can carry things placed
// on top of it.
func Solid(id ID) bool {
	switch id {
	case Air, Water, Tree, Pot, LifeCrystal, DemonAltar, Chest:
		return false
	}
	return true
}

// Natural reports whether generation may overwrite the tile (ore veins,
// carving chest pockets).
func Natural(id ID) bool {
	switch id {
	case Dirt, Stone, Sand, Ash, Grass:
		return true
	}
	return IsOre(id)
}
