package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/noumenal/ckg/internal/config"
)

// RemoteProvider embeds text via an HTTP service speaking the
// text-embeddings-inference wire format (POST /embed, JSON array in,
// JSON array-of-arrays out). Transient failures are retried with
// exponential backoff, bounded by MaxRetry (spec.md §4.9's failure
// semantics for the Embedding class).
type RemoteProvider struct {
	cfg       config.RemoteEmbeddingConfig
	client    *http.Client
	dimension int
	maxRetry  int
	backoff   time.Duration
}

// NewRemoteProvider constructs a client for a remote embedding service.
// dimension is the D the service is known to produce; RemoteProvider
// cannot discover this on its own.
func NewRemoteProvider(cfg config.RemoteEmbeddingConfig, dimension, maxRetry int, backoff time.Duration) (*RemoteProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: remote embedding base URL required", ErrBackendUnavailable)
	}
	return &RemoteProvider{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout.Duration()},
		dimension: dimension,
		maxRetry:  maxRetry,
		backoff:   backoff,
	}, nil
}

func (p *RemoteProvider) Dimension() int { return p.dimension }

func (p *RemoteProvider) Close() error { return nil }

type teiRequest struct {
	Inputs   any  `json:"inputs"`
	Truncate bool `json:"truncate"`
}

func (p *RemoteProvider) EmbedOne(ctx context.Context, text string, d int) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := p.embed(ctx, text, d)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrBackendUnavailable)
	}
	return vecs[0], nil
}

func (p *RemoteProvider) EmbedMany(ctx context.Context, texts []string, d int) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	return p.embed(ctx, texts, d)
}

// embed posts inputs (a string or []string) and retries transient
// failures (network errors, 5xx) up to maxRetry times with exponential
// backoff. A 4xx response is treated as permanent and not retried.
func (p *RemoteProvider) embed(ctx context.Context, inputs any, d int) ([][]float32, error) {
	if d != p.dimension {
		return nil, fmt.Errorf("%w: requested %d, service produces %d", ErrDimensionMismatch, d, p.dimension)
	}

	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	wait := p.backoff
	for attempt := 0; attempt <= p.maxRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		vecs, retryable, err := p.embedOnce(ctx, body)
		if err == nil {
			for _, v := range vecs {
				if verr := checkVector(v, d); verr != nil {
					return nil, verr
				}
			}
			return vecs, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: exhausted %d retries: %v", ErrBackendUnavailable, p.maxRetry, lastErr)
}

func (p *RemoteProvider) embedOnce(ctx context.Context, body []byte) (vecs [][]float32, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey.Value())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, true, fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(&vecs); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	return vecs, false, nil
}
