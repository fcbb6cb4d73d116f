package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PausedSentinel is what /ui/next_step reports while the simulation is paused.
const PausedSentinel = -1

// ParseNumber parses a plain-text numeric body such as "3600", "12.5\n" or "\"7\"".
func ParseNumber(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, fmt.Errorf("%w: empty numeric body", ErrMalformed)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrMalformed, s)
	}
	return v, nil
}

// FormatNextStep renders the time-to-next-step card. The value is truncated
// toward zero; the paused sentinel renders as "Pause".
func FormatNextStep(seconds float64) string {
	n := int64(seconds)
	if n == PausedSentinel {
		return "Pause"
	}
	return strconv.FormatInt(n, 10)
}

// FormatSimulationTime renders whole seconds as hours, e.g. 5400 -> "1.5h"
// and 7200 -> "2.0h". There is no pause special case here.
func FormatSimulationTime(seconds float64) string {
	hours := float64(int64(seconds)) / 3600
	return formatFloat(hours) + "h"
}

// formatFloat prints the shortest representation that round-trips, always
// keeping a fractional part so integral hours read "2.0" rather than "2".
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
