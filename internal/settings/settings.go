package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"replenisher/internal/sim/tile"
)

type Settings struct {
	GenerateInProtectedAreas  bool `yaml:"generate_in_protected_areas" json:"generate_in_protected_areas"`
	AutoRefill                bool `yaml:"auto_refill" json:"auto_refill"`
	AutoRefillIntervalMinutes int  `yaml:"auto_refill_interval_minutes" json:"auto_refill_interval_minutes"`

	Ores            OreSettings  `yaml:"ores" json:"ores"`
	Chests          KindSettings `yaml:"chests" json:"chests"`
	Pots            KindSettings `yaml:"pots" json:"pots"`
	LifeCrystals    KindSettings `yaml:"life_crystals" json:"life_crystals"`
	Trees           KindSettings `yaml:"trees" json:"trees"`
	Altars          KindSettings `yaml:"altars" json:"altars"`
	Pyramids        KindSettings `yaml:"pyramids" json:"pyramids"`
	FloatingIslands KindSettings `yaml:"floating_islands" json:"floating_islands"`
}

type KindSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Amount  int  `yaml:"amount" json:"amount"`
}

type OreSettings struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Amount  int      `yaml:"amount" json:"amount"`
	Types   []string `yaml:"types" json:"types"`
}

// ParseError reports a settings document that could not be decoded or did
// not validate.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Defaults() Settings {
	return Settings{
		AutoRefill:                true,
		AutoRefillIntervalMinutes: 30,
		Ores: OreSettings{
			Types: []string{"copper", "iron"},
		},
	}
}

func (s Settings) Interval() time.Duration {
	return time.Duration(s.AutoRefillIntervalMinutes) * time.Minute
}

func (s Settings) Validate() error {
	if s.AutoRefillIntervalMinutes <= 0 {
		return fmt.Errorf("auto_refill_interval_minutes must be > 0")
	}
	amounts := map[string]int{
		"ores":             s.Ores.Amount,
		"chests":           s.Chests.Amount,
		"pots":             s.Pots.Amount,
		"life_crystals":    s.LifeCrystals.Amount,
		"trees":            s.Trees.Amount,
		"altars":           s.Altars.Amount,
		"pyramids":         s.Pyramids.Amount,
		"floating_islands": s.FloatingIslands.Amount,
	}
	for name, v := range amounts {
		if v < 0 {
			return fmt.Errorf("%s.amount must be >= 0", name)
		}
	}
	for i, name := range s.Ores.Types {
		if _, err := tile.LookupOre(name); err != nil {
			return fmt.Errorf("ores.types[%d]: %w", i, err)
		}
	}
	return nil
}

// Load reads and validates a settings document. A missing file is returned
// as-is (os.IsNotExist); decode and validation failures are *ParseError.
func Load(path string) (Settings, error) {
	s := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if strings.TrimSpace(string(b)) == "" {
		return s, &ParseError{Path: path, Err: fmt.Errorf("empty document")}
	}
	// Keys missing from the document keep their default value, except the
	// ore list which is replaced whole when present.
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Defaults(), &ParseError{Path: path, Err: err}
	}
	if err := s.Validate(); err != nil {
		return Defaults(), &ParseError{Path: path, Err: err}
	}
	return s, nil
}

// Save writes s to path through a temp file so readers never observe a
// partial document.
func Save(path string, s Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
