package tile

import (
	"errors"
	"strings"
	"testing"
)

func TestLookupOre_CaseInsensitive(t *testing.T) {
	for _, name := range []string{"Copper", "copper", " COPPER "} {
		id, err := LookupOre(name)
		if err != nil {
			t.Fatalf("LookupOre(%q): %v", name, err)
		}
		if id != Copper {
			t.Fatalf("LookupOre(%q)=%v want copper", name, id)
		}
	}
	if id, err := LookupOre("Hellstone"); err != nil || id != Hellstone {
		t.Fatalf("hellstone: id=%v err=%v", id, err)
	}
}

func TestLookupOre_NotFound(t *testing.T) {
	_, err := LookupOre("Unobtainium")
	if !errors.Is(err, ErrOreNotFound) {
		t.Fatalf("expected ErrOreNotFound, got %v", err)
	}
	_, err = LookupOre("coper")
	if !errors.Is(err, ErrOreNotFound) {
		t.Fatalf("expected ErrOreNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), `"copper"`) {
		t.Fatalf("expected suggestion in %q", err.Error())
	}
}

func TestOreTableIsConsistent(t *testing.T) {
	for name, id := range OreByName {
		if name != strings.ToLower(name) {
			t.Fatalf("ore key %q must be lower case", name)
		}
		if id.String() != name {
			t.Fatalf("ore %q has tile name %q", name, id.String())
		}
		if !IsOre(id) || !Natural(id) || !Solid(id) {
			t.Fatalf("ore %q should be a natural solid ore", name)
		}
	}
	if IsOre(Stone) || IsOre(Air) {
		t.Fatalf("stone/air are not ores")
	}
}

func TestSolid(t *testing.T) {
	if Solid(Air) || Solid(Water) || Solid(Chest) {
		t.Fatalf("air/water/chest are not solid")
	}
	if !Solid(Stone) || !Solid(Sand) {
		t.Fatalf("stone/sand are solid")
	}
}
