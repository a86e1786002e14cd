package subtitle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNegativeTimestamp is returned when a negative offset is formatted
	ErrNegativeTimestamp = errors.New("negative timestamp")
	// ErrInvalidTimestamp is returned for NaN/Inf offsets and unparsable strings
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// FormatTimestamp converts an offset in seconds to the SRT form HH:MM:SS,mmm.
// Hours are not wrapped and milliseconds are truncated, never rounded, with
// a tolerance of 1ns: an offset less than 1ns below a millisecond boundary
// is formatted as that boundary, so 1.001 stays 00:00:01,001 despite its
// binary value being slightly smaller.
func FormatTimestamp(seconds float64) (string, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidTimestamp, seconds)
	}
	if seconds < 0 {
		return "", fmt.Errorf("%w: %v", ErrNegativeTimestamp, seconds)
	}

	// 1e-6 ms is the 1ns tolerance
	totalMs := int64(math.Floor(seconds*1000 + 1e-6))

	hours := totalMs / 3600000
	minutes := (totalMs / 60000) % 60
	secs := (totalMs / 1000) % 60
	millis := totalMs % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis), nil
}

// ParseTimestamp parses HH:MM:SS,mmm (a period separator is accepted too)
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}

	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}

	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	if hours < 0 || minutes < 0 || secs < 0 || millis < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}

	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}
