package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"12.5", 12.5},
		{"90", 90},
		{"02:03", 123},
		{"01:02:03.5", 3723.5},
		{" 00:00:07 ", 7},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1:2:3:4", "01:60", "01:61:00", "1.5:00", "NaN"} {
		_, err := parseTimestamp(in)
		assert.Error(t, err, in)
	}
}
