package domain

import (
	"errors"
	"net/http"
)

var (
	// ErrConfiguration signals a missing or invalid document directory or setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptyCorpus signals a document directory without usable PDF files.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmbeddingService signals a failed, timed out or malformed embedding call.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrIndexNotBuilt signals a search before any successful index build.
	ErrIndexNotBuilt = errors.New("index not built")
	// ErrAnswerService signals a failed call to the answering model.
	ErrAnswerService = errors.New("answer service error")
	// ErrEmptyQuestion signals a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

// Retryable reports whether a caller may retry the failed operation as is.
// Corpus and configuration problems need an operator; upstream model failures may be transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbeddingService) || errors.Is(err, ErrAnswerService)
}

// HTTPStatus maps an error to the status a consuming HTTP service should report.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrEmbeddingService), errors.Is(err, ErrAnswerService):
		return http.StatusBadGateway
	case errors.Is(err, ErrIndexNotBuilt):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
