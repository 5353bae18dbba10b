package util

import (
	"strconv"
)

// MustParseUint returns 0 when s is not a valid unsigned integer.
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseUintPtr returns nil for an empty or invalid s.
func ParseUintPtr(s string) *uint {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil
	}
	v := uint(id)
	return &v
}
