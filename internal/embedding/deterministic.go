package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DeterministicProvider produces a repeatable pseudo-embedding from a
// SHA-256 hash of the input text, with no model weights and no network
// calls. It exists for tests that exercise the Embedding Port contract
// (dimension, finite non-zero norm) and for round-trip assertions where
// the same text must always map to the same vector, without pulling in
// fastembed-go or a running remote service.
type DeterministicProvider struct {
	dimension int
}

// NewDeterministicProvider returns a provider that always emits vectors
// of the given dimension.
func NewDeterministicProvider(dimension int) *DeterministicProvider {
	return &DeterministicProvider{dimension: dimension}
}

func (p *DeterministicProvider) Dimension() int { return p.dimension }

func (p *DeterministicProvider) Close() error { return nil }

func (p *DeterministicProvider) EmbedOne(ctx context.Context, text string, d int) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if d != p.dimension {
		return nil, ErrDimensionMismatch
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return hashVector(text, d), nil
}

func (p *DeterministicProvider) EmbedMany(ctx context.Context, texts []string, d int) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if d != p.dimension {
		return nil, ErrDimensionMismatch
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = hashVector(t, d)
	}
	return vecs, nil
}

// hashVector expands a SHA-256 digest of text into d float32 components
// via counter-mode re-hashing, then L2-normalizes the result so it obeys
// the same non-zero-finite-norm contract a real embedding model does.
func hashVector(text string, d int) []float32 {
	out := make([]float32, d)
	block := sha256.Sum256([]byte(text))
	counter := uint32(0)
	buf := make([]byte, len(block)+4)
	copy(buf, block[:])

	var sumSq float64
	for i := 0; i < d; i++ {
		if i%8 == 0 {
			binary.LittleEndian.PutUint32(buf[len(block):], counter)
			block = sha256.Sum256(buf)
			copy(buf, block[:])
			counter++
		}
		raw := binary.LittleEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		v := float32(raw)/float32(math.MaxUint32)*2 - 1
		out[i] = v
		sumSq += float64(v) * float64(v)
	}

	norm := float32(math.Sqrt(sumSq))
	if norm == 0 {
		out[0] = 1
		norm = 1
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}
