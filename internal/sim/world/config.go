package world

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ID            string `yaml:"id"`
	Seed          int64  `yaml:"seed"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	Surface       int    `yaml:"surface"`
	OceanDistance int    `yaml:"ocean_distance"`

	// BiomeRegionSize is the column width of one biome region.
	BiomeRegionSize int `yaml:"biome_region_size"`
	// CavePermille is the share of underground 4x4 cells carved as caves.
	CavePermille int `yaml:"cave_permille"`
	// OrePermille is the share of underground 3x3 cells seeded with ore.
	OrePermille int `yaml:"ore_permille"`

	Regions []RegionSpec `yaml:"regions,omitempty"`
}

// RegionSpec is a protected rectangle; both corners are inclusive.
type RegionSpec struct {
	Name string `yaml:"name"`
	X1   int    `yaml:"x1"`
	Y1   int    `yaml:"y1"`
	X2   int    `yaml:"x2"`
	Y2   int    `yaml:"y2"`
}

// Defaults matches a small host world.
func Defaults() Config {
	return Config{
		ID:              "world_1",
		Seed:            1337,
		Width:           4200,
		Height:          1200,
		Surface:         300,
		OceanDistance:   250,
		BiomeRegionSize: 160,
		CavePermille:    180,
		OrePermille:     12,
		Regions: []RegionSpec{
			{Name: "spawn", X1: 2060, Y1: 200, X2: 2140, Y2: 320},
		},
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("world.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("world.yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("id must not be empty")
	}
	if c.Width < 16 || c.Height < 16 {
		return fmt.Errorf("world must be at least 16x16, got %dx%d", c.Width, c.Height)
	}
	if c.Surface <= 0 || c.Surface >= c.Height {
		return fmt.Errorf("surface must be in (0, height), got %d", c.Surface)
	}
	if c.OceanDistance < 0 || 2*c.OceanDistance >= c.Width {
		return fmt.Errorf("ocean_distance must be in [0, width/2), got %d", c.OceanDistance)
	}
	if c.BiomeRegionSize <= 0 {
		return fmt.Errorf("biome_region_size must be > 0")
	}
	if c.CavePermille < 0 || c.CavePermille > 1000 || c.OrePermille < 0 || c.OrePermille > 1000 {
		return fmt.Errorf("cave_permille/ore_permille must be in [0, 1000]")
	}
	seen := map[string]bool{}
	for i, r := range c.Regions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("regions[%d] name must not be empty", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate region name: %s", name)
		}
		seen[name] = true
		if r.X2 < r.X1 || r.Y2 < r.Y1 {
			return fmt.Errorf("region %s has inverted corners", name)
		}
	}
	return nil
}
