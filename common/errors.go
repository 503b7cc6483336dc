package common

import "github.com/pkg/errors"

var (
	// ErrMissingFile is returned when an image or label path does not resolve.
	ErrMissingFile = errors.New("missing file")
	// ErrMalformedLabel is returned when a label row cannot be parsed into a box.
	ErrMalformedLabel = errors.New("malformed label")
	// ErrIndexOutOfRange is returned when a dataset index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidConfig is returned when configuration values are inconsistent.
	ErrInvalidConfig = errors.New("invalid config")
)
