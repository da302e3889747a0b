package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noumenal/ckg/internal/config"
)

func TestNew_Deterministic(t *testing.T) {
	p, err := New(config.EmbeddingConfig{Provider: "deterministic"}, 32)
	require.NoError(t, err)
	assert.Equal(t, 32, p.Dimension())
}

func TestNew_Remote(t *testing.T) {
	p, err := New(config.EmbeddingConfig{
		Provider: "remote",
		Remote:   config.RemoteEmbeddingConfig{BaseURL: "http://localhost:9999"},
	}, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, p.Dimension())
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "bogus"}, 16)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
