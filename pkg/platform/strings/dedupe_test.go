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
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "broker list from an env var",
			input:    []string{"  kafka-1:9092 ", "kafka-2:9092", "kafka-1:9092", "", "  "},
			expected: []string{"kafka-1:9092", "kafka-2:9092"},
		},
		{
			name:     "preserves case",
			input:    []string{"Foo", "foo", "FOO"},
			expected: []string{"Foo", "foo", "FOO"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name: "checksummed and lowercase forms of one account collapse",
			input: []string{
				"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
				"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
				" 0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
			},
			expected: []string{
				"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
				"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
