package mathx

import "testing"

func TestClamp100(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0}, {0, 0}, {42.5, 42.5}, {100, 100}, {250, 100},
	}
	for _, c := range cases {
		if got := Clamp100(c.in); got != c.want {
			t.Fatalf("Clamp100(%v) = %v want %v", c.in, got, c.want)
		}
	}
}

func TestStepSeed_Stable(t *testing.T) {
	if StepSeed(1, 16) != StepSeed(1, 16) {
		t.Fatalf("StepSeed not stable")
	}
	if StepSeed(1, 16) == StepSeed(1, 32) {
		t.Fatalf("StepSeed should vary with time")
	}
}
