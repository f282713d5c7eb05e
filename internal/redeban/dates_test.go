package redeban

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDateKnownFormats(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"iso fractional no zone", "2024-01-31T20:05:24.023", "2024-01-31T20:05:24.023Z"},
		{"iso with zone", "2024-01-31T20:05:24Z", "2024-01-31T20:05:24Z"},
		{"iso no zone", "2024-01-31T20:05:24", "2024-01-31T20:05:24Z"},
		{"sql style", "2024-01-31 20:05:24", "2024-01-31T20:05:24Z"},
		{"date only", "2024-01-31", "2024-01-31T00:00:00Z"},
		{"day month year slash", "31/01/2024", "2024-01-31T00:00:00Z"},
		{"month day year slash", "01/31/2024", "2024-01-31T00:00:00Z"},
		{"day month year dash", "31-01-2024", "2024-01-31T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseDate(tc.in))
		})
	}
}

func TestParseDateAmbiguousPrefersDayMonth(t *testing.T) {
	// 05/01 could be May 1 or Jan 5; day/month wins
	assert.Equal(t, "2024-01-05T00:00:00Z", ParseDate("05/01/2024"))
}

func TestParseDateUnrecognizedPassthrough(t *testing.T) {
	assert.Equal(t, "not-a-date", ParseDate("not-a-date"))
	assert.Equal(t, "", ParseDate(""))
	assert.Equal(t, "31/13/2024", ParseDate("31/13/2024"))
}

func TestParseDateIdempotent(t *testing.T) {
	once := ParseDate("2024-01-31T20:05:24.023")
	assert.Equal(t, once, ParseDate(once))
}
