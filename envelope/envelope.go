// Package envelope implements the wire envelope format and its
// serialization: a JSON-shaped textual form carrying an id, body,
// optional checksum, and the packed flag byte of flags.go.
package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is the unit exchanged on the wire.
type Envelope struct {
	ID       string `json:"id"`
	Body     any    `json:"body,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Flags    byte   `json:"flags"`

	ChunkIndex *int `json:"ci,omitempty"`
	ChunkTotal *int `json:"ct,omitempty"`

	OriginalSize   *int `json:"os,omitempty"`
	CompressedSize *int `json:"cs,omitempty"`
}

// DecodedFlags is a convenience accessor over e.Flags.
func (e Envelope) DecodedFlags() Flags {
	return DecodeFlags(e.Flags)
}

const chunkSuffix = "-chunk-"

// ChunkID builds the wire id for chunk index `i` of a logical message
// whose base id is baseID.
func ChunkID(baseID string, i int) string {
	return baseID + chunkSuffix + strconv.Itoa(i)
}

// SplitChunkID recovers the base id and chunk index from a chunk id of
// the form "<base>-chunk-<index>". ok is false if id does not match that
// pattern.
func SplitChunkID(id string) (baseID string, index int, ok bool) {
	i := strings.LastIndex(id, chunkSuffix)
	if i < 0 {
		return "", 0, false
	}
	idxStr := id[i+len(chunkSuffix):]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return "", 0, false
	}
	return id[:i], idx, true
}

// Serialize renders e as its wire bytes (a JSON object).
func Serialize(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Parse attempts to decode data as a wire envelope. It returns ok=false
// (not an error) when the payload is not a valid envelope — i.e. it has
// no "id" or no "flags" key — so the engine can treat it as a
// non-protocol passthrough datagram.
func Parse(data []byte) (Envelope, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, false
	}
	if _, hasID := raw["id"]; !hasID {
		return Envelope{}, false
	}
	if _, hasFlags := raw["flags"]; !hasFlags {
		return Envelope{}, false
	}

	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, false
	}
	return e, true
}

// Checksum computes the hex-encoded SHA-256 digest of data, for the
// envelope's optional checksum field. Scope note: this
// is computed per wire unit by the caller — the whole body for a single
// send, or each chunk's encoded text for a chunked send — not as one
// end-to-end digest over the logical message.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
