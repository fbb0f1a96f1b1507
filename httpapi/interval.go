package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeIntervalUnits maps every unit spec.md §6 lists to its
// time.Duration multiplier. "h" and "hr" are both accepted as synonyms.
var timeIntervalUnits = map[string]time.Duration{
	"ns":  time.Nanosecond,
	"us":  time.Microsecond,
	"ms":  time.Millisecond,
	"s":   time.Second,
	"min": time.Minute,
	"h":   time.Hour,
	"hr":  time.Hour,
}

// defaultTimeIntervalUnit applies when s is a bare number with no unit
// suffix (spec.md §6).
const defaultTimeIntervalUnit = "ms"

// parseTimeInterval parses a "<n><unit>" string per spec.md §6/§8
// property 9: a bare number defaults to milliseconds, and an
// unrecognized unit suffix is an error. Unlike time.ParseDuration, this
// never accepts compound durations like "1h30m" -- the wire format is
// always a single number and a single unit.
// ParseTimeInterval is the exported entry point other packages (e.g.
// cmd/sprserver) use to reparse the same timeInterval string this
// package already validated at request-decode time.
func ParseTimeInterval(s string) (time.Duration, error) {
	return parseTimeInterval(s)
}

func parseTimeInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("httpapi: empty timeInterval")
	}

	i := 0
	for i < len(s) && (s[i] == '-' || s[i] == '+' || s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("httpapi: timeInterval %q has no numeric prefix", s)
	}
	numPart, unitPart := s[:i], s[i:]

	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("httpapi: timeInterval %q: %w", s, err)
	}

	unit := strings.TrimSpace(unitPart)
	if unit == "" {
		unit = defaultTimeIntervalUnit
	}
	mult, ok := timeIntervalUnits[unit]
	if !ok {
		return 0, fmt.Errorf("httpapi: timeInterval %q: unknown unit %q", s, unitPart)
	}
	return time.Duration(n * float64(mult)), nil
}
