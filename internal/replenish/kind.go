package replenish

import (
	"fmt"
	"strings"

	"replenisher/internal/sim/tile"
)

// Kind selects the sampling band and placement primitive of a run.
type Kind string

const (
	KindOre            Kind = "ore"
	KindChests         Kind = "chests"
	KindPots           Kind = "pots"
	KindLifeCrystals   Kind = "lifecrystals"
	KindAltars         Kind = "altars"
	KindTrees          Kind = "trees"
	KindPyramids       Kind = "pyramids"
	KindFloatingIsland Kind = "floatingisland"
)

var allKinds = []Kind{
	KindOre,
	KindChests,
	KindPots,
	KindLifeCrystals,
	KindAltars,
	KindTrees,
	KindPyramids,
	KindFloatingIsland,
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k Kind) Valid() bool {
	for _, v := range allKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Title is the kind name with its first letter upper-cased, as shown in
// command replies.
func (k Kind) Title() string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.Valid() {
		return k, nil
	}
	names := make([]string, 0, len(allKinds))
	for _, v := range allKinds {
		names = append(names, string(v))
	}
	if best := tile.Closest(string(k), names); best != "" {
		return "", fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownKind, s, best)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
