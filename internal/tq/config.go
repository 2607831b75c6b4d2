// Package tq implements per-chunk target-quality search: probing a small,
// fixed set of quantizer values, scoring them perceptually, and choosing the
// quantizer whose score is closest to an operator-supplied target.
package tq

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds target-quality search parameters for one chunk.
type Config struct {
	// Target is the desired perceptual score T.
	Target float64

	// QPMin and QPMax bound the quantizer search range.
	QPMin float64
	QPMax float64

	// Steps is the candidate count: Qmin, Qmax, and Steps-2 interior
	// points. Must be >= 4.
	Steps int
}

// DefaultConfig returns the baseline quantizer search range and step count.
func DefaultConfig() *Config {
	return &Config{
		QPMin: 25,
		QPMax: 50,
		Steps: 4,
	}
}

// ParseTargetScore parses a single target score value (e.g., "90").
func ParseTargetScore(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target score %q: %w", s, err)
	}
	return v, nil
}

// ParseQPRange parses a quantizer search range string (e.g., "25-50").
func ParseQPRange(s string) (min, max float64, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid QP range format %q, expected 'min-max' (e.g., '25-50')", s)
	}

	min, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid QP range min %q: %w", parts[0], err)
	}

	max, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid QP range max %q: %w", parts[1], err)
	}

	if min > max {
		return 0, 0, fmt.Errorf("QP range min (%v) must be <= max (%v)", min, max)
	}

	return min, max, nil
}
