package tile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var ErrOreNotFound = errors.New("ore not found")

// OreByName is the complete set of ore names accepted by commands and
// settings. Keys are lower case.
var OreByName = map[string]ID{
	"copper":      Copper,
	"tin":         Tin,
	"iron":        Iron,
	"lead":        Lead,
	"silver":      Silver,
	"tungsten":    Tungsten,
	"gold":        Gold,
	"platinum":    Platinum,
	"meteorite":   Meteorite,
	"demonite":    Demonite,
	"crimtane":    Crimtane,
	"hellstone":   Hellstone,
	"cobalt":      Cobalt,
	"palladium":   Palladium,
	"mythril":     Mythril,
	"orichalcum":  Orichalcum,
	"adamantite":  Adamantite,
	"titanium":    Titanium,
	"chlorophyte": Chlorophyte,
}

func IsOre(id ID) bool {
	for _, v := range OreByName {
		if v == id {
			return true
		}
	}
	return false
}

// OreNames returns the accepted ore names sorted.
func OreNames() []string {
	out := make([]string, 0, len(OreByName))
	for n := range OreByName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LookupOre resolves an ore name case-insensitively. Unknown names return an
// error wrapping ErrOreNotFound that carries the closest known name.
func LookupOre(name string) (ID, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := OreByName[key]; ok {
		return id, nil
	}
	if s := Closest(key, OreNames()); s != "" {
		return 0, fmt.Errorf("%w: %q (did you mean %q?)", ErrOreNotFound, name, s)
	}
	return 0, fmt.Errorf("%w: %q", ErrOreNotFound, name)
}

// Closest returns the candidate with the smallest edit distance to s, or ""
// when nothing is within half of s's length.
func Closest(s string, candidates []string) string {
	s = strings.ToLower(s)
	if s == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(s, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > (len(s)+1)/2 {
		return ""
	}
	return best
}
