package cmd

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate is returned when --date is neither a date nor an RFC3339 timestamp
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD or RFC3339")

// parseIntervalEnd accepts a run date or a full timestamp. An empty value
// means now. A bare date is the end of that UTC day so it maps to the same
// run date.
func parseIntervalEnd(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}

	return day.Add(24*time.Hour - time.Minute), nil
}
