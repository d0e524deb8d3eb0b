package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownRange = errors.New("unknown replay range")

// Range is a replay lookback window.
type Range string

const (
	Range6h  Range = "6h"
	Range24h Range = "24h"
	Range3d  Range = "3d"
	Range7d  Range = "7d"

	DefaultRange = Range24h
)

var rangeDurations = map[Range]time.Duration{
	Range6h:  6 * time.Hour,
	Range24h: 24 * time.Hour,
	Range3d:  3 * 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
}

func ParseRange(s string) (Range, error) {
	r := Range(s)
	if _, ok := rangeDurations[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
	}
	return r, nil
}

func (r Range) Duration() time.Duration {
	return rangeDurations[r]
}

func (r Range) Valid() bool {
	_, ok := rangeDurations[r]
	return ok
}
