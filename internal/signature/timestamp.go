package signature

import "strconv"

// ValidateTimestamp parses a decimal Unix timestamp and checks that it lies
// within tolerance seconds of now, in either direction. The bound is
// inclusive.
func ValidateTimestamp(raw string, now, tolerance int64) (int64, error) {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidTimestamp
	}

	if tolerance < 0 {
		tolerance = 0
	}

	if distance(now, ts) > uint64(tolerance) {
		return 0, ErrTimestampExpired
	}

	return ts, nil
}

// distance returns |a - b| without overflowing on extreme inputs
func distance(a, b int64) uint64 {
	if a >= b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}
