package middleware

import (
	"errors"
	"strconv"
)

// MaxPageSize caps the number of turns returned by one request.
const MaxPageSize = 100

// ParseAfter parses the "after" cursor: the index of the last turn the
// client already has. An empty value means from the start (-1).
func ParseAfter(v string) (int, error) {
	if v == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < -1 {
		return 0, errors.New("after must be an integer >= -1")
	}
	return n, nil
}

// ParseLimit parses a page size, defaulting to 50 and capping at MaxPageSize.
func ParseLimit(v string) (int, error) {
	if v == "" {
		return 50, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	return n, nil
}
