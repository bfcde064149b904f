package parser

import (
	"fmt"
	"time"
)

// TimestampLayout is the Go time layout of the BIND query log timestamp.
// Month names are matched case-insensitively by the time package.
const TimestampLayout = "02-Jan-2006 15:04:05.000"

// parseTimestamp parses a captured query log timestamp in loc and drops the
// sub-second part.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	ts, err := time.ParseInLocation(TimestampLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return ts.Truncate(time.Second), nil
}
