package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"empty slice", []string{}, nil},
		{"trims whitespace", []string{"  a:9092  ", "b:9092  "}, []string{"a:9092", "b:9092"}},
		{"removes duplicates preserving order", []string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
		{"only blanks", []string{"", "  "}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DedupeAndTrim(tc.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, SplitList(" kafka-1:9092,kafka-2:9092,,kafka-1:9092 "))
	assert.Nil(t, SplitList(""))
}
