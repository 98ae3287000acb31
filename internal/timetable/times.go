package timetable

import (
	"strconv"
	"strings"
)

// NoTime is the sentinel used in the dataset for stops without a scheduled time.
const NoTime = "--:--"

// millisThreshold: epoch values above this are milliseconds, not seconds.
// Kept for compatibility with older clients that report in milliseconds.
const millisThreshold = 2_500_000_000

// ParseClock parses an "HH:MM" string into minutes since midnight.
// Returns false for NoTime, empty, or malformed values.
func ParseClock(s string) (int, bool) {
	if s == "" || s == NoTime {
		return 0, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// WaitMinutes is the time-of-day difference departure minus arrival in
// minutes, wrapped across midnight when the raw difference is negative.
func WaitMinutes(arrival, departure int) int {
	diff := departure - arrival
	if diff < 0 {
		diff += 24 * 60
	}
	return diff
}

// NormalizeTimestamp converts a reported epoch timestamp to seconds,
// treating values above 2.5e9 as milliseconds.
func NormalizeTimestamp(ts int64) int64 {
	if ts > millisThreshold {
		return ts / 1000
	}
	return ts
}
