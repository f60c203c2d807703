package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"pomplan/internal/period"
)

func TestSlotsStayOrdered(t *testing.T) {
	t.Parallel()
	var s Slots
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for _, m := range []int{90, 0, 30, 60, 30} {
		s.Open(base.Add(time.Duration(m) * time.Minute))
	}
	if s.Len() != 4 {
		t.Fatalf("Len = %d, want 4 (duplicate open must be ignored)", s.Len())
	}
	for i := 1; i < s.Len(); i++ {
		if !s.At(i - 1).At.Before(s.At(i).At) {
			t.Fatalf("slots out of order at %d", i)
		}
	}
}

func TestSlotsOpenDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	var s Slots
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.Set(at, "x")
	if s.Open(at) {
		t.Fatal("Open reported a new slot for an existing time")
	}
	if id, ok := s.Get(at); !ok || id != "x" {
		t.Fatalf("Get = %q, %v", id, ok)
	}
	// Same instant in another zone is the same slot.
	if id, _ := s.Get(at.In(time.FixedZone("X", 3600))); id != "x" {
		t.Fatalf("lookup by equal instant in another zone failed")
	}
}

func TestSlotsRange(t *testing.T) {
	t.Parallel()
	var s Slots
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		s.Open(base.Add(time.Duration(i) * time.Hour))
	}
	lo, hi := s.Range(period.New(base.Add(2*time.Hour), base.Add(5*time.Hour)))
	if lo != 2 || hi != 5 {
		t.Fatalf("Range = [%d,%d), want [2,5)", lo, hi)
	}
	lo, hi = s.Range(period.New(base.Add(5*time.Hour), base.Add(2*time.Hour)))
	if lo != hi {
		t.Fatalf("inverted interval should be empty, got [%d,%d)", lo, hi)
	}
}

func TestSlotsJSON(t *testing.T) {
	t.Parallel()
	var s Slots
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Set(base.Add(time.Hour), "b")
	s.Set(base, "")

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Slots
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len = %d, want 2", got.Len())
	}
	if id, _ := got.Get(base.Add(time.Hour)); id != "b" {
		t.Fatalf("occupant lost in round trip: %q", id)
	}
}

func TestSlotsRelease(t *testing.T) {
	t.Parallel()
	var s Slots
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Set(base, "a")
	s.Set(base.Add(time.Hour), "a")
	s.Set(base.Add(2*time.Hour), "b")
	if n := s.Release("a"); n != 2 {
		t.Fatalf("Release = %d, want 2", n)
	}
	if id, _ := s.Get(base.Add(2 * time.Hour)); id != "b" {
		t.Fatal("Release touched another task's slot")
	}
}
