package embedding

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/noumenal/ckg/internal/config"
)

// modelMapping maps the config-facing model name to the fastembed-go
// constant that selects the bundled ONNX weights.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// modelDimensions maps fastembed models to their native embedding
// dimension, used to validate the caller's requested D up front.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// LocalProvider embeds text with a local ONNX model via fastembed-go. No
// network call is made once the model is cached on disk.
type LocalProvider struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	dimension int
}

// NewLocalProvider initializes (and, on first use, downloads) the
// configured model under cfg.CacheDir.
func NewLocalProvider(cfg config.LocalEmbeddingConfig) (*LocalProvider, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := modelDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported local model %q", ErrBackendUnavailable, cfg.Model)
		}
	}
	dimension := modelDimensions[model]

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "./ckg-data/.cache/models"
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: initializing fastembed: %v", ErrBackendUnavailable, err)
	}

	return &LocalProvider{model: flagEmbed, dimension: dimension}, nil
}

func (p *LocalProvider) Dimension() int { return p.dimension }

// EmbedOne embeds text with the "query: " prefix BGE models expect for
// one-shot retrieval queries.
func (p *LocalProvider) EmbedOne(ctx context.Context, text string, d int) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if d != p.dimension {
		return nil, fmt.Errorf("%w: requested %d, model produces %d", ErrDimensionMismatch, d, p.dimension)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vec, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := checkVector(vec, d); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedMany embeds a batch with the "passage: " prefix BGE models expect
// for documents being indexed.
func (p *LocalProvider) EmbedMany(ctx context.Context, texts []string, d int) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if d != p.dimension {
		return nil, fmt.Errorf("%w: requested %d, model produces %d", ErrDimensionMismatch, d, p.dimension)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	vecs, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	for _, v := range vecs {
		if err := checkVector(v, d); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}
