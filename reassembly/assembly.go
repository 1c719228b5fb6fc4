package reassembly

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/quantarax/rdpe/envelope"
)

// assembly is the receiver-side structure collecting chunks of one
// logical message until complete.
type assembly struct {
	slots         []*string // base64 chunk text per index; nil = not yet received
	receivedCount int
	total         int
	createdAt     time.Time
	remote        string
	codec         envelope.CodecIndex
	codecSet      bool
}

// Reassembler owns the receiver-side assembly map, keyed by base id.
type Reassembler struct {
	mu        sync.Mutex
	assembles map[string]*assembly
	nowFunc   func() time.Time
}

// NewReassembler constructs an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		assembles: make(map[string]*assembly),
		nowFunc:   time.Now,
	}
}

// InitAssembly creates the assembly for baseID on first chunk arrival, if
// it doesn't already exist. codec and compressed are recorded from the
// flags of whichever chunk arrives first: every chunked REQ carries the
// same codec bits, so the result does not depend on arrival order.
func (r *Reassembler) InitAssembly(baseID string, total int, remote string, codec envelope.CodecIndex, compressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.assembles[baseID]; exists {
		return
	}
	r.assembles[baseID] = &assembly{
		slots:     make([]*string, total),
		total:     total,
		createdAt: r.nowFunc(),
		remote:    remote,
		codec:     codec,
		codecSet:  compressed,
	}
}

// AddChunk records chunk `index` of baseID's assembly. Duplicate chunks
// for an already-filled index are silently ignored (duplicate=true) and
// never move received_count. complete is true only when every slot has
// been filled.
func (r *Reassembler) AddChunk(baseID string, index int, data string) (complete bool, duplicate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assembles[baseID]
	if !ok || index < 0 || index >= a.total {
		return false, false
	}
	if a.slots[index] != nil {
		return a.receivedCount == a.total, true
	}
	d := data
	a.slots[index] = &d
	a.receivedCount++
	return a.receivedCount == a.total, false
}

// GetAssembledData concatenates the base64-decoded slots of baseID's
// assembly in index order, returning ok=false unless reassembly is
// complete (every slot present and received_count == total).
func (r *Reassembler) GetAssembledData(baseID string) (data []byte, codec envelope.CodecIndex, compressed bool, ok bool) {
	r.mu.Lock()
	a, exists := r.assembles[baseID]
	r.mu.Unlock()
	if !exists || a.receivedCount != a.total {
		return nil, 0, false, false
	}

	var out []byte
	for _, slot := range a.slots {
		if slot == nil {
			return nil, 0, false, false
		}
		chunk, err := base64.StdEncoding.DecodeString(*slot)
		if err != nil {
			return nil, 0, false, false
		}
		out = append(out, chunk...)
	}

	r.mu.Lock()
	delete(r.assembles, baseID)
	r.mu.Unlock()

	return out, a.codec, a.codecSet, true
}

// CleanupStale removes assemblies whose age exceeds timeout, returning the
// number removed.
func (r *Reassembler) CleanupStale(timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFunc()
	count := 0
	for id, a := range r.assembles {
		if now.Sub(a.createdAt) > timeout {
			delete(r.assembles, id)
			count++
		}
	}
	return count
}

// Len reports the number of assemblies currently in flight (diagnostics).
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assembles)
}

// Clear removes every in-flight assembly.
func (r *Reassembler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assembles = make(map[string]*assembly)
}
