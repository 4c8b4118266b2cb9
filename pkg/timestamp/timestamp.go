// Package timestamp formats and parses the H:MM:SS.mmm timestamps used in
// cue files and ffmpeg's textual output.
package timestamp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format renders non-negative seconds as "H:MM:SS.mmm" (hours unpadded),
// rounded to millisecond precision.
func Format(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))

	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000

	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}

// Parse converts a "H:MM:SS.mmm" timestamp back to seconds. The hour field
// may carry any number of digits and fractional seconds are optional.
func Parse(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q: want H:MM:SS.mmm", ts)
	}

	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: bad hours: %w", ts, err)
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: bad minutes: %w", ts, err)
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: bad seconds: %w", ts, err)
	}

	return float64(h)*3600 + float64(m)*60 + s, nil
}
