package domain

import "errors"

var (
	// ErrInvalidInput marks a transaction the pipeline refuses to encode.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClassifierUnavailable marks a request that could not be scored.
	// It is terminal for the request; no verdict is guessed.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrModelLoad is returned by the model repository when no artifact
	// could be loaded from any source.
	ErrModelLoad = errors.New("model load failed")

	// ErrNotFound is returned by repositories when no record matches the
	// tenant and ID.
	ErrNotFound = errors.New("record not found")
)
