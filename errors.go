package herald

import "errors"

var (
	// Registry errors.
	ErrRegistrySealed    = errors.New("herald: registry sealed")
	ErrUnresolvedHandler = errors.New("herald: handler has no resolvable event type")

	// Dispatch errors.
	ErrDispatchDisabled = errors.New("herald: dispatch disabled")
	ErrDispatchFailed   = errors.New("herald: dispatch failed")

	// Configuration errors.
	ErrInvalidConfig = errors.New("herald: invalid config")

	// Worker pool errors.
	ErrPoolStopped = errors.New("herald: worker pool stopped")

	// Dead letter errors.
	ErrDLQNotFound = errors.New("herald: dlq entry not found")

	// Source errors.
	ErrSourceClosed = errors.New("herald: event source closed")

	// Codec errors.
	ErrUnknownCodec = errors.New("herald: unknown codec content type")
)
