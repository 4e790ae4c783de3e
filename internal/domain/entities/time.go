package entities

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads a timestamp in one of the supported layouts or as
// Unix epoch seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return EpochSeconds(secs)
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Epoch seconds must fall in years 0001 through 9999, the range RFC3339
// can render.
var (
	minEpoch = float64(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
	maxEpoch = float64(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
)

// EpochSeconds converts fractional Unix seconds to a UTC time. NaN,
// infinities and values outside years 0001-9999 are rejected.
func EpochSeconds(secs float64) (time.Time, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("epoch seconds must be finite, got %v", secs)
	}
	if secs < minEpoch || secs >= maxEpoch {
		return time.Time{}, fmt.Errorf("epoch seconds %g out of range", secs)
	}
	whole := math.Floor(secs)
	frac := secs - whole
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}
