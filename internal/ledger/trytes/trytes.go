// Package trytes converts text to and from the ledger's tryte alphabet and
// splits encoded payloads into record-sized chunks.
//
// Every input byte becomes exactly two trytes (low digit first), so an
// encoded payload always has even length and decoding is the exact inverse
// of encoding for any byte string, including multi-byte UTF-8.
package trytes

import (
	"errors"
	"strings"
)

// Alphabet is the tryte symbol set; the index of a symbol is its value.
const Alphabet = "9ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Padding is the symbol the ledger fills unused record space with.
const Padding = '9'

// MaxChunkSize is the number of trytes a single ledger record can carry.
const MaxChunkSize = 2187

const radix = len(Alphabet)

var (
	// ErrOddLength means Decode was called without truncating first.
	ErrOddLength = errors.New("trytes: odd length input")
	// ErrInvalidTrytes means the input holds a non-alphabet symbol or a
	// pair that does not map to a byte.
	ErrInvalidTrytes = errors.New("trytes: invalid tryte sequence")
)

var values [256]int8

func init() {
	for i := range values {
		values[i] = -1
	}
	for i := 0; i < radix; i++ {
		values[Alphabet[i]] = int8(i)
	}
}

// Encode transcodes text byte by byte into trytes.
func Encode(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for i := 0; i < len(text); i++ {
		c := int(text[i])
		b.WriteByte(Alphabet[c%radix])
		b.WriteByte(Alphabet[c/radix])
	}
	return b.String()
}

// Decode is the inverse of Encode. The input length must be even.
func Decode(symbols string) (string, error) {
	if len(symbols)%2 != 0 {
		return "", ErrOddLength
	}
	out := make([]byte, 0, len(symbols)/2)
	for i := 0; i < len(symbols); i += 2 {
		lo, hi := values[symbols[i]], values[symbols[i+1]]
		if lo < 0 || hi < 0 {
			return "", ErrInvalidTrytes
		}
		v := int(lo) + int(hi)*radix
		if v > 0xff {
			return "", ErrInvalidTrytes
		}
		out = append(out, byte(v))
	}
	return string(out), nil
}

// IsValid reports whether s contains only alphabet symbols.
func IsValid(s string) bool {
	for i := 0; i < len(s); i++ {
		if values[s[i]] < 0 {
			return false
		}
	}
	return true
}
