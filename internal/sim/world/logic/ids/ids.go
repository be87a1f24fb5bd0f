package ids

import (
	"strconv"
	"strings"
)

// Allocator issues world-scoped identifiers from the world's persisted counter.
// The counter only moves forward; the zero value is not usable.
type Allocator struct {
	next *int64
}

func NewAllocator(next *int64) Allocator {
	return Allocator{next: next}
}

// Allocate returns the current counter value as a string and advances it.
func (a Allocator) Allocate() string {
	n := *a.next
	*a.next = n + 1
	return strconv.FormatInt(n, 10)
}

func (a Allocator) Next() int64 { return *a.next }

// Parse reverses Allocate. Ids minted elsewhere (e.g. memory uuids) return false.
func Parse(id string) (int64, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func MaxI64(a, b int64) int64 {
	if a >= b {
		return a
	}
	return b
}

// Less orders allocator ids numerically, falling back to string order for foreign ids.
func Less(a, b string) bool {
	na, okA := Parse(a)
	nb, okB := Parse(b)
	if okA && okB {
		return na < nb
	}
	if okA != okB {
		return okA
	}
	return a < b
}
