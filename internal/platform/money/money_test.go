package money

import "testing"

func TestRound2HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{-1.005, -1.01},
		{2.344, 2.34},
		{2.345, 2.35},
		{0, 0},
		{719.999999999, 720},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestSum2RoundsEachStep(t *testing.T) {
	if got := Sum2(600, 720); got != 1320 {
		t.Fatalf("expected 1320, got %v", got)
	}
	if got := Sum2(0.105, 0.105); got != 0.22 {
		t.Fatalf("expected 0.22, got %v", got)
	}
}
