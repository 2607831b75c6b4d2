// Package config provides configuration types and defaults for the chunk
// pipeline.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrMissingInput indicates no input path was supplied.
	ErrMissingInput = errors.New("input is required")

	// ErrInvalidEncoder indicates an unknown encoder identity.
	ErrInvalidEncoder = errors.New("invalid encoder")

	// ErrInvalidPasses indicates a pass count other than 1 or 2.
	ErrInvalidPasses = errors.New("invalid pass count")

	// ErrInvalidSteps indicates a target-quality step count below the minimum of 4.
	ErrInvalidSteps = errors.New("invalid target-quality step count")

	// ErrInvalidQPRange indicates an inverted quantizer search range.
	ErrInvalidQPRange = errors.New("invalid quantizer range")

	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("invalid worker count")
)
