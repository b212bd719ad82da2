package mathx

import "testing"

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{7, 2, 3},
		{-7, 2, -4},
		{-8, 2, -4},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(42, 10, 20) != Hash2(42, 10, 20) {
		t.Fatalf("Hash2 must be deterministic")
	}
	if Hash2(42, 10, 20) == Hash2(43, 10, 20) {
		t.Fatalf("different seeds should produce different hashes")
	}
	if p := Permille(Hash2(1, 2, 3)); p < 0 || p >= 1000 {
		t.Fatalf("Permille out of range: %d", p)
	}
}

func TestClampInt(t *testing.T) {
	if ClampInt(-3, 0, 10) != 0 || ClampInt(12, 0, 10) != 10 || ClampInt(5, 0, 10) != 5 {
		t.Fatalf("ClampInt mismatch")
	}
}
