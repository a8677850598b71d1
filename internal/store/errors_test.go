package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chaptermark/chaptermark-server/internal/store"
)

func TestError_Error(t *testing.T) {
	assert.Equal(t, "resource not found", store.ErrNotFound.Error())

	wrapped := store.ErrInvalidInput.WithCause(errors.New("bad cursor"))
	assert.Equal(t, "invalid input: bad cursor", wrapped.Error())
}

func TestError_WithCauseKeepsIdentity(t *testing.T) {
	cause := errors.New("db error")
	err := store.ErrNotFound.WithCause(cause)

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, store.ErrAlreadyExists)

	var storeErr *store.Error
	assert.ErrorAs(t, fmt.Errorf("get job: %w", err), &storeErr)
	assert.Equal(t, http.StatusNotFound, storeErr.HTTPCode())
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      *store.Error
		wantCode int
	}{
		{name: "not found", err: store.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "already exists", err: store.ErrAlreadyExists, wantCode: http.StatusConflict},
		{name: "invalid input", err: store.ErrInvalidInput, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.HTTPCode())
		})
	}
}
