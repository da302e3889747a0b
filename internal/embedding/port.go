// Package embedding implements the Embedding Port (C1): the abstract
// interface producing fixed-dimension real vectors from text, one-shot and
// batch, behind which a local ONNX model or a remote HTTP service are
// interchangeable.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/noumenal/ckg/internal/ckgerr"
)

// Sentinel leaf errors, wrapping the matching ckgerr.Kind.
var (
	ErrBackendUnavailable = fmt.Errorf("embedding backend unavailable: %w", ckgerr.ErrBackend)
	ErrDimensionMismatch  = fmt.Errorf("embedding dimension mismatch: %w", ckgerr.ErrInvalidInput)
	ErrEmptyInput         = fmt.Errorf("empty input text: %w", ckgerr.ErrInvalidInput)
)

// Port is the embedding contract every provider implements. Output length
// always equals the requested dimension D; for non-empty input the L2 norm
// is finite and non-zero.
type Port interface {
	// EmbedOne embeds a single text into a D-dimensional vector.
	EmbedOne(ctx context.Context, text string, d int) ([]float32, error)

	// EmbedMany embeds a batch of texts, same semantics as EmbedOne.
	EmbedMany(ctx context.Context, texts []string, d int) ([][]float32, error)

	// Dimension reports the provider's native output dimension.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// checkVector validates a returned vector against the requested dimension
// and the non-zero-finite-norm contract, for providers whose underlying
// backend doesn't already enforce it.
func checkVector(v []float32, d int) error {
	if len(v) != d {
		return fmt.Errorf("%w: got %d components, want %d", ErrDimensionMismatch, len(v), d)
	}
	var sumSq float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component", ErrBackendUnavailable)
		}
		sumSq += f * f
	}
	if sumSq == 0 {
		return fmt.Errorf("%w: zero vector", ErrBackendUnavailable)
	}
	return nil
}

func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: texts must not be empty", ErrEmptyInput)
	}
	for _, t := range texts {
		if t == "" {
			return fmt.Errorf("%w: empty text in batch", ErrEmptyInput)
		}
	}
	return nil
}
