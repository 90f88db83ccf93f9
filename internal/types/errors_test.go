package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")

	err := Wrap(ErrEmbedding, "embed chunks", cause)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "embed chunks: embedding failed: connection refused", err.Error())

	assert.Nil(t, Wrap(ErrEmbedding, "noop", nil))
}

func TestWrapCancellation(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded, fmt.Errorf("post: %w", context.Canceled)} {
		err := Wrap(ErrGeneration, "complete", cause)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.NotErrorIs(t, err, ErrGeneration)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := Wrap(ErrEmbedding, "embed", errors.New("boom"))
	outer := Wrap(ErrGeneration, "query", fmt.Errorf("stage: %w", inner))
	assert.ErrorIs(t, outer, ErrEmbedding)
	assert.NotErrorIs(t, outer, ErrGeneration)
}

func TestRetryableAndKind(t *testing.T) {
	tests := []struct {
		kind      error
		retryable bool
	}{
		{ErrDocumentLoad, false},
		{ErrEmbedding, true},
		{ErrIndexEmpty, false},
		{ErrRerank, true},
		{ErrGeneration, true},
		{ErrCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			err := &Error{Kind: tt.kind, Op: "op"}
			assert.Equal(t, tt.retryable, Retryable(err))
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	assert.Nil(t, KindOf(errors.New("plain")))
}
