package subtitle

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{3661.5, "01:01:01,500"},
		{1.001, "00:00:01,001"},
		{1.9999, "00:00:01,999"},
		{59.999, "00:00:59,999"},
		{61.25, "00:01:01,250"},
		{360000, "100:00:00,000"},
		// the 1ns tolerance below a boundary
		{0.9999999999, "00:00:01,000"},
		{0.99999, "00:00:00,999"},
		{2.0004999, "00:00:02,000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := FormatTimestamp(tt.seconds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTimestampRejectsInvalid(t *testing.T) {
	_, err := FormatTimestamp(-0.5)
	assert.True(t, errors.Is(err, ErrNegativeTimestamp))

	_, err = FormatTimestamp(math.NaN())
	assert.True(t, errors.Is(err, ErrInvalidTimestamp))

	_, err = FormatTimestamp(math.Inf(1))
	assert.True(t, errors.Is(err, ErrInvalidTimestamp))
}

func TestFormatTimestampMonotonic(t *testing.T) {
	prev := -1.0
	for x := 0.0; x < 7300; x += 3.3337 {
		ts, err := FormatTimestamp(x)
		require.NoError(t, err)

		parsed, err := ParseTimestamp(ts)
		require.NoError(t, err)

		if parsed < prev {
			t.Fatalf("FormatTimestamp(%v) = %s went backwards", x, ts)
		}
		prev = parsed
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"00:00:00,000", 0, false},
		{"01:01:01,500", 3661.5, false},
		{"00:00:02.250", 2.25, false},
		{" 00:01:00,000 ", 60, false},
		{"", 0, true},
		{"00:00:01", 0, true},
		{"aa:00:01,000", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
