package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noumenal/ckg/internal/config"
)

func TestNewLocalProvider_RejectsUnknownModel(t *testing.T) {
	_, err := NewLocalProvider(config.LocalEmbeddingConfig{Model: "not-a-real-model"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestModelDimensions_CoverAllMappedModels(t *testing.T) {
	for name, model := range modelMapping {
		_, ok := modelDimensions[model]
		assert.True(t, ok, "model %s missing a dimension entry", name)
	}
}
