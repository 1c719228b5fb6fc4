// Package reassembly implements the chunker/reassembler (C5): splitting a
// large byte buffer into ordered chunks on the sender side, and
// reassembling them from out-of-order, possibly-duplicated arrivals on the
// receiver side. Adapted from QuantaraX's internal/chunker package
// (file-offset chunking) to in-memory wire-chunk bookkeeping.
package reassembly

import "encoding/base64"

// CreateChunks splits data into ceil(len/chunkSize) base64-encoded pieces,
// in strict index order.
func CreateChunks(data []byte, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = len(data)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}
	total := (len(data) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	chunks := make([]string, 0, total)
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, base64.StdEncoding.EncodeToString(data[i:end]))
	}
	if len(chunks) == 0 {
		chunks = append(chunks, base64.StdEncoding.EncodeToString(nil))
	}
	return chunks
}
