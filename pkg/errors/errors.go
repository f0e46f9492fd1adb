// Package errors defines the error taxonomy shared by the offline pipeline
// and the inference service: sentinel errors for each failure class plus an
// AppError wrapper that carries an HTTP status code across handler
// boundaries.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUsage indicates a bad CLI invocation (missing or malformed
	// arguments). Fatal: print usage and exit non-zero.
	ErrUsage = errors.New("usage error")
	// ErrConfiguration indicates invalid startup configuration such as a
	// missing output directory or artifact path. Fatal before processing.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptyVocabulary is returned when frequency filtering removes every
	// token from the vocabulary.
	ErrEmptyVocabulary = errors.New("vocabulary is empty after filtering")
	// ErrEmptyCorpus is returned when a model fit is attempted on a corpus
	// with zero documents.
	ErrEmptyCorpus = errors.New("corpus contains no documents")
	// ErrFormat indicates a corrupt or inconsistent persisted artifact
	// (corpus, index, vocabulary, or model file). Fatal on load.
	ErrFormat = errors.New("invalid artifact format")
	// ErrInvalidTopicID is returned when a topic id outside [0, num_topics)
	// is requested. Rejects the single call, never the process.
	ErrInvalidTopicID = errors.New("topic id out of range")
	// ErrRequestFormat indicates a malformed inference request body.
	ErrRequestFormat = errors.New("malformed request")
	// ErrModelNotLoaded is returned when the service is asked to answer
	// before its artifacts are available.
	ErrModelNotLoaded = errors.New("topic model not loaded")
	// ErrInternal is the catch-all for unexpected failures.
	ErrInternal = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status the service should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrRequestFormat), errors.Is(err, ErrInvalidTopicID):
		return http.StatusBadRequest
	case errors.Is(err, ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
