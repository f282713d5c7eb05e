package redeban

import "time"

// dateLayouts is the fixed ordered list of formats the upstream has been
// observed to emit. Day/month comes before month/day so ambiguous dates
// resolve the Colombian way.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
}

// ParseDate re-emits a recognized date as ISO-8601 UTC. Fractional seconds
// are accepted after any seconds field. Unrecognized input passes through
// unchanged rather than failing the record.
func ParseDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02T15:04:05.999999999Z07:00")
		}
	}
	return s
}
