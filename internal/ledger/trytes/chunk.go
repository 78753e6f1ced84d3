package trytes

import "strings"

// Chunk splits symbols greedily into runs of maxSize; only the last chunk may
// be shorter. An empty input yields no chunks. Chunks carry no sequence
// metadata: order is the only thing that ties them back together.
func Chunk(symbols string, maxSize int) []string {
	if maxSize <= 0 {
		panic("trytes: chunk size must be positive")
	}
	if symbols == "" {
		return nil
	}
	chunks := make([]string, 0, (len(symbols)+maxSize-1)/maxSize)
	for start := 0; start < len(symbols); start += maxSize {
		end := min(start+maxSize, len(symbols))
		chunks = append(chunks, symbols[start:end])
	}
	return chunks
}

// Unchunk concatenates chunks in the order given.
func Unchunk(chunks []string) string {
	return strings.Join(chunks, "")
}
