package models

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrNotFound indicates a missing source path.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedFormat indicates a file extension with no registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrConfiguration indicates an invalid or inconsistent pipeline configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation indicates an invalid argument such as k <= 0 or an empty query.
	ErrValidation = errors.New("validation error")
	// ErrEmbeddingBackend indicates the embedding model failed. Retryable.
	ErrEmbeddingBackend = errors.New("embedding backend error")
	// ErrEmbeddingTimeout indicates an embedding call exceeded its deadline. Retryable.
	ErrEmbeddingTimeout = errors.New("embedding timeout")
	// ErrDimensionMismatch indicates a vector whose length differs from the store dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// IsRetryable reports whether err is a transient embedding failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingBackend) || errors.Is(err, ErrEmbeddingTimeout)
}
