package fingerprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FoldMode selects how each parsed policy document is turned into text
// before the documents are concatenated and hashed.
type FoldMode int

const (
	// FoldLegacy coerces values the way existing device clients do: objects
	// become "[object Object]" and arrays join their elements with ",". For
	// object documents the fingerprint then depends on the number of
	// policies, not their content.
	FoldLegacy FoldMode = iota
	// FoldCanonical uses the canonical JSON text of each value (sorted keys),
	// so any content change alters the fingerprint.
	FoldCanonical
)

func (m FoldMode) String() string {
	switch m {
	case FoldLegacy:
		return "legacy"
	case FoldCanonical:
		return "canonical"
	default:
		return fmt.Sprintf("FoldMode(%d)", int(m))
	}
}

// ParseFoldMode maps a config value to a FoldMode. Empty selects FoldLegacy.
func ParseFoldMode(s string) (FoldMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return FoldLegacy, nil
	case "canonical":
		return FoldCanonical, nil
	default:
		return FoldLegacy, fmt.Errorf("unknown fingerprint fold mode %q", s)
	}
}

func (m FoldMode) fold(values []any) (string, error) {
	var b strings.Builder
	for _, v := range values {
		switch m {
		case FoldCanonical:
			text, err := canonicalJSON(v)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
		default:
			b.WriteString(coerce(v))
		}
	}
	return b.String(), nil
}

// coerce renders v the way string concatenation does in device clients.
func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, el := range t {
			// null elements join as empty strings
			if el != nil {
				parts[i] = coerce(el)
			}
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

// formatNumber renders f with the shortest round-trip digits, switching to
// exponent form outside [1e-6, 1e21).
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}

func canonicalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
