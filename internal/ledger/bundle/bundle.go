// Package bundle reassembles a published payload from the fragments of a
// fetched ledger bundle.
package bundle

import (
	"strings"
	"unicode"

	"frost/internal/ledger/trytes"
)

// IsPadding reports whether a fragment holds nothing but padding symbols and
// whitespace filler. Empty fragments are not padding.
//
// Only whole-padding fragments match. A fragment with payload followed by a
// padding suffix is real data and is kept in full; its trailing pad symbols
// decode to NUL bytes at the end of the text.
func IsPadding(fragment string) bool {
	if fragment == "" {
		return false
	}
	for _, r := range fragment {
		if r != trytes.Padding && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Join drops padding-only fragments, concatenates the rest in ledger order
// and truncates to an even length.
func Join(fragments []string) string {
	var b strings.Builder
	for _, f := range fragments {
		if IsPadding(f) {
			continue
		}
		b.WriteString(f)
	}
	message := b.String()
	// Decoding consumes symbol pairs. An odd tail can only come from a
	// record padded to MaxChunkSize, so the dropped symbol is padding in
	// practice; if it is not, the last byte is lost.
	if len(message)%2 != 0 {
		message = message[:len(message)-1]
	}
	return message
}

// Reconstruct returns the text that was encoded into the bundle.
func Reconstruct(fragments []string) (string, error) {
	return trytes.Decode(Join(fragments))
}
