package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrMissingData indicates a required value (rating, genres, sentiment) is absent
	ErrMissingData = errors.New("missing data")

	// ErrMalformedInput indicates a record could not be parsed (bad rating or vote count)
	ErrMalformedInput = errors.New("malformed input")

	// ErrPublish indicates the derived tables could not be replaced
	ErrPublish = errors.New("publish failed")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClassifier indicates the sentiment classifier returned an unusable response
	ErrClassifier = errors.New("classifier error")
)
