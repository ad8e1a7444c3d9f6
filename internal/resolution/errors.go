package resolution

import "errors"

var (
	// ErrGeneration indicates the completion call itself failed.
	ErrGeneration = errors.New("resolution generation failed")

	// ErrEmptyResponse indicates the completion returned no content.
	ErrEmptyResponse = errors.New("empty response from completion")
)
