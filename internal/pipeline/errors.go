package pipeline

import "errors"

// Named failure kinds surfaced to callers. Each is matchable with
// errors.Is so a caller can react differently to "image too large"
// versus "model missing" versus "backend failed".
var (
	// ErrImageTooLarge means the feasibility check rejected the input;
	// recoverable by choosing a smaller image or scale.
	ErrImageTooLarge = errors.New("image too large")

	// ErrModelMissing means the expected model artifact is absent.
	// Retrying is the caller's responsibility after provisioning it.
	ErrModelMissing = errors.New("model missing")

	// ErrInferenceBackend means engine construction or inference failed
	// after exhausting the CPU-only retry.
	ErrInferenceBackend = errors.New("inference backend failed")

	// ErrDecodeFailed means the input bytes are not a decodable image.
	ErrDecodeFailed = errors.New("image decode failed")

	// ErrIOFailure means reading the input or writing the output failed.
	ErrIOFailure = errors.New("i/o failure")
)
