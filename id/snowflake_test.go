package id

import (
	"strconv"
	"testing"
	"time"
)

func TestNewGeneratorRejectsInvalidWorkerID(t *testing.T) {
	if _, err := NewGenerator(-1, time.Time{}); err != ErrInvalidWorkerID {
		t.Fatalf("expected ErrInvalidWorkerID, got %v", err)
	}
	if _, err := NewGenerator(1024, time.Time{}); err != ErrInvalidWorkerID {
		t.Fatalf("expected ErrInvalidWorkerID, got %v", err)
	}
}

func TestGenerateUniqueAndMonotonic(t *testing.T) {
	g, err := NewGenerator(7, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	var prev uint64
	for i := 0; i < 20000; i++ {
		v, err := g.Generate()
		if err != nil {
			t.Fatal(err)
		}
		if seen[v] {
			t.Fatalf("duplicate id %s at iteration %d", v, i)
		}
		seen[v] = true
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && n <= prev {
			t.Fatalf("id %d not greater than previous %d at iteration %d", n, prev, i)
		}
		prev = n
	}
}

func TestGenerateSequenceExhaustionWaitsForNextMs(t *testing.T) {
	g, err := NewGenerator(1, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	tick := int64(0)
	g.nowFunc = func() time.Time {
		// Stay on the same millisecond for maxSequence+2 calls (the loop's
		// maxSequence+1 Generates plus the wrapping call's first read), then advance.
		tick++
		if tick <= maxSequence+2 {
			return g.epoch.Add(100 * time.Millisecond)
		}
		return g.epoch.Add(101 * time.Millisecond)
	}

	for i := 0; i <= maxSequence; i++ {
		if _, err := g.Generate(); err != nil {
			t.Fatal(err)
		}
	}
	// Sequence wrapped; the next Generate must busy-wait to ts=101ms.
	v, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(v)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.TimestampMs != 101 {
		t.Fatalf("expected generator to advance to next ms, got ts=%d", parsed.TimestampMs)
	}
}

func TestGenerateClockBackwardsIsFatal(t *testing.T) {
	g, err := NewGenerator(1, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	g.nowFunc = func() time.Time { return g.epoch.Add(50 * time.Millisecond) }
	if _, err := g.Generate(); err != nil {
		t.Fatal(err)
	}
	g.nowFunc = func() time.Time { return g.epoch.Add(10 * time.Millisecond) }
	if _, err := g.Generate(); err != ErrClockBackwards {
		t.Fatalf("expected ErrClockBackwards, got %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	g, err := NewGenerator(42, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	v, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(v)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.WorkerID != 42 {
		t.Fatalf("expected worker id 42, got %d", parsed.WorkerID)
	}
}
