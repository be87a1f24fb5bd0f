package ids

import (
	"sort"
	"testing"
)

func TestAllocator_DistinctAndMonotonic(t *testing.T) {
	var counter int64 = 7
	a := NewAllocator(&counter)

	const n = 250
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		id := a.Allocate()
		if seen[id] {
			t.Fatalf("duplicate id %q at call %d", id, i)
		}
		seen[id] = true
	}
	if counter != 7+n {
		t.Fatalf("counter: got %d want %d", counter, 7+n)
	}
	if a.Next() != counter {
		t.Fatalf("Next: got %d want %d", a.Next(), counter)
	}
}

func TestAllocator_SurvivesReload(t *testing.T) {
	var counter int64
	first := NewAllocator(&counter).Allocate()

	// A reloaded world restores the persisted counter into a fresh allocator.
	restored := counter
	second := NewAllocator(&restored).Allocate()
	if first == second {
		t.Fatalf("ids collided across reload: %q", first)
	}
}

func TestParseAndLess(t *testing.T) {
	if n, ok := Parse("42"); !ok || n != 42 {
		t.Fatalf("Parse(42) = %d,%v", n, ok)
	}
	for _, bad := range []string{"", "-1", "abc", "4x"} {
		if _, ok := Parse(bad); ok {
			t.Fatalf("Parse(%q) should fail", bad)
		}
	}

	got := []string{"10", "2", "b-uuid", "1", "a-uuid"}
	sort.Slice(got, func(i, j int) bool { return Less(got[i], got[j]) })
	want := []string{"1", "2", "10", "a-uuid", "b-uuid"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v want %v", got, want)
		}
	}
}
