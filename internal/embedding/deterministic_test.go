package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicProvider_EmbedOne_StableAndValid(t *testing.T) {
	p := NewDeterministicProvider(32)
	ctx := context.Background()

	v1, err := p.EmbedOne(ctx, "hello world", 32)
	require.NoError(t, err)
	assert.Len(t, v1, 32)

	v2, err := p.EmbedOne(ctx, "hello world", 32)
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "same text must hash to the same vector")

	v3, err := p.EmbedOne(ctx, "different text", 32)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestDeterministicProvider_EmbedOne_EmptyText(t *testing.T) {
	p := NewDeterministicProvider(32)
	_, err := p.EmbedOne(context.Background(), "", 32)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDeterministicProvider_EmbedOne_DimensionMismatch(t *testing.T) {
	p := NewDeterministicProvider(32)
	_, err := p.EmbedOne(context.Background(), "hello", 64)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDeterministicProvider_EmbedMany(t *testing.T) {
	p := NewDeterministicProvider(16)
	vecs, err := p.EmbedMany(context.Background(), []string{"a", "b", "c"}, 16)
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.NoError(t, checkVector(v, 16))
	}
}

func TestDeterministicProvider_EmbedMany_EmptyBatch(t *testing.T) {
	p := NewDeterministicProvider(16)
	_, err := p.EmbedMany(context.Background(), nil, 16)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDeterministicProvider_Dimension(t *testing.T) {
	p := NewDeterministicProvider(128)
	assert.Equal(t, 128, p.Dimension())
}
