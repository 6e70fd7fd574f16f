package domain

import (
	"errors"
	"fmt"
)

// Input errors. The user can correct these without retrying anything external.
var (
	ErrNoUploads       = errors.New("please upload at least one file")
	ErrNoSources       = errors.New("no usable sources provided")
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

var (
	// ErrLoad marks a source that could not be fetched or parsed.
	ErrLoad = errors.New("load failed")

	// ErrNoIndex means no processed papers are available to query.
	ErrNoIndex = errors.New("no index available")

	// ErrStaleIndex is an index file that exists but cannot serve queries.
	// It wraps ErrNoIndex.
	ErrStaleIndex = fmt.Errorf("%w: index is stale", ErrNoIndex)

	// ErrService marks a failed embedding or completion call.
	ErrService = errors.New("service call failed")

	ErrMissingAPIKey = errors.New("missing API key")

	// ErrStorage marks an index that could not be built or written to disk.
	ErrStorage = errors.New("index could not be saved")

	// ErrBusy is returned when an action is attempted while another is running.
	ErrBusy = errors.New("another action is in progress")
)

// IsInputError reports whether err was caused by bad user input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrNoUploads) ||
		errors.Is(err, ErrNoSources) ||
		errors.Is(err, ErrEmptyQuestion) ||
		errors.Is(err, ErrUnsupportedFile)
}
