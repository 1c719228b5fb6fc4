// Package id implements the snowflake-style message ID generator (C1).
package id

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	maxWorkerID = 1023
	maxSequence = 4095

	timestampShift = 22
	workerIDShift  = 12
)

// DefaultEpoch is the snowflake epoch used when none is supplied:
// 2024-01-01T00:00:00Z.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidWorkerID is returned by NewGenerator when workerID is out of range.
var ErrInvalidWorkerID = errors.New("id: worker id out of range [0, 1023]")

// ErrClockBackwards is returned by Generate when the system clock moves
// behind the last observed timestamp. It is fatal to the generator instance.
var ErrClockBackwards = errors.New("id: clock moved backwards")

// Generator produces monotonically increasing, globally unique IDs
// combining an epoch-relative millisecond timestamp, a worker id, and a
// per-millisecond sequence.
type Generator struct {
	mu              sync.Mutex
	workerID        int64
	epoch           time.Time
	lastTimestampMs int64
	sequence        int64

	nowFunc func() time.Time
}

// NewGenerator constructs a Generator for the given worker id and epoch.
// A zero epoch defaults to DefaultEpoch.
func NewGenerator(workerID int, epoch time.Time) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	return &Generator{
		workerID:        int64(workerID),
		epoch:           epoch,
		lastTimestampMs: -1,
		sequence:        0,
		nowFunc:         time.Now,
	}, nil
}

// Generate returns the next unique ID as a decimal string. Concurrent
// callers on the same Generator observe pairwise-distinct outputs.
func (g *Generator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.nowMs()

	if ts < g.lastTimestampMs {
		return "", ErrClockBackwards
	}

	if ts == g.lastTimestampMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			ts = g.waitNextMs(ts)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestampMs = ts

	packed := (uint64(ts) << timestampShift) | (uint64(g.workerID) << workerIDShift) | uint64(g.sequence)
	return strconv.FormatUint(packed, 10), nil
}

func (g *Generator) nowMs() int64 {
	return g.nowFunc().Sub(g.epoch).Milliseconds()
}

// waitNextMs busy-waits until the clock advances past ts.
func (g *Generator) waitNextMs(ts int64) int64 {
	next := g.nowMs()
	for next <= ts {
		next = g.nowMs()
	}
	return next
}

// Parsed holds the decoded components of a generated ID.
type Parsed struct {
	TimestampMs int64
	WorkerID    int64
	Sequence    int64
}

// Parse decodes a generated ID string back into its components, for
// diagnostics.
func Parse(idStr string) (Parsed, error) {
	packed, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return Parsed{}, err
	}
	return Parsed{
		TimestampMs: int64(packed >> timestampShift),
		WorkerID:    int64((packed >> workerIDShift) & maxWorkerID),
		Sequence:    int64(packed & maxSequence),
	}, nil
}
