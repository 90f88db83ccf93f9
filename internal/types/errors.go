package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDocumentLoad = errors.New("document load failed")
	ErrEmbedding    = errors.New("embedding failed")
	ErrIndexEmpty   = errors.New("index is empty")
	ErrRerank       = errors.New("rerank failed")
	ErrGeneration   = errors.New("generation failed")
	ErrCancelled    = errors.New("cancelled")
)

// Error records which operation failed and what kind of failure it was.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err as kind. Context cancellation and deadlines always
// become ErrCancelled. An error that is already classified is returned as is.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = ErrCancelled
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retryable reports whether err came from a backend failure that may succeed
// on a later attempt.
func Retryable(err error) bool {
	if errors.Is(err, ErrCancelled) {
		return false
	}
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrRerank) || errors.Is(err, ErrGeneration)
}

// KindOf returns the taxonomy sentinel err belongs to, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrCancelled, ErrDocumentLoad, ErrEmbedding, ErrIndexEmpty, ErrRerank, ErrGeneration} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
