package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaldb/internal/codec"
)

func TestIsRFC3339(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"exact form", "2024-03-05T10:30:00Z", true},
		{"fractional seconds rejected", "2024-03-05T10:30:00.123Z", false},
		{"offset rejected", "2024-03-05T10:30:00+02:00", false},
		{"date only rejected", "2024-03-05", false},
		{"garbage", "not a date", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.IsRFC3339(tt.in))
		})
	}
}

func TestParseRFC3339_ReturnsUTC(t *testing.T) {
	got, err := codec.ParseRFC3339("2024-03-05T10:30:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, got.Location())
}

func TestFormatRFC3339_RoundTrips(t *testing.T) {
	in := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	s := codec.FormatRFC3339(in)
	assert.Equal(t, "2024-03-05T10:30:00Z", s)

	back, err := codec.ParseRFC3339(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(back))
}

func TestTruncateMillis(t *testing.T) {
	in := time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC)
	got := codec.TruncateMillis(in)
	assert.Equal(t, 123000000, got.Nanosecond())
}
