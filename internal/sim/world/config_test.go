package world

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Shipped(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "world.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "world_1" || len(cfg.Regions) != 1 || cfg.Regions[0].Name != "spawn" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadConfig_MissingKeysKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte("id: tiny\nwidth: 300\nheight: 200\nsurface: 60\nocean_distance: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if cfg.Width != 300 || cfg.Seed != def.Seed || cfg.CavePermille != def.CavePermille {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"inverted.yaml": "regions:\n  - {name: a, x1: 10, y1: 10, x2: 5, y2: 20}\n",
		"dup.yaml":      "regions:\n  - {name: a, x1: 1, y1: 1, x2: 2, y2: 2}\n  - {name: a, x1: 3, y1: 3, x2: 4, y2: 4}\n",
		"surface.yaml":  "surface: 5000\n",
		"garbage.yaml":  "width: [1,2\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("missing file err=%v", err)
	}
}
