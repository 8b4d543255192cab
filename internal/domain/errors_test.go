package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"auditrag/internal/domain"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"empty question", domain.ErrEmptyQuestion, http.StatusBadRequest},
		{"configuration", fmt.Errorf("load: %w", domain.ErrConfiguration), http.StatusUnprocessableEntity},
		{"empty corpus", fmt.Errorf("load: %w", domain.ErrEmptyCorpus), http.StatusUnprocessableEntity},
		{"embedding", fmt.Errorf("embed: %w", domain.ErrEmbeddingService), http.StatusBadGateway},
		{"answer", fmt.Errorf("chat: %w", domain.ErrAnswerService), http.StatusBadGateway},
		{"not built", domain.ErrIndexNotBuilt, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.HTTPStatus(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, domain.Retryable(fmt.Errorf("x: %w", domain.ErrEmbeddingService)))
	assert.True(t, domain.Retryable(domain.ErrAnswerService))
	assert.False(t, domain.Retryable(domain.ErrEmptyCorpus))
	assert.False(t, domain.Retryable(domain.ErrConfiguration))
	assert.False(t, domain.Retryable(domain.ErrIndexNotBuilt))
}
