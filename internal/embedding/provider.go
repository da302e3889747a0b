package embedding

import (
	"fmt"

	"github.com/noumenal/ckg/internal/config"
)

// New constructs the Port selected by cfg.Provider. defaultDimension is
// used for providers that cannot discover their own output dimension
// (remote, deterministic); the local fastembed provider ignores it and
// reports the dimension native to its configured model.
func New(cfg config.EmbeddingConfig, defaultDimension int) (Port, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalProvider(cfg.Local)
	case "remote":
		return NewRemoteProvider(cfg.Remote, defaultDimension, cfg.MaxRetry, cfg.Backoff.Duration())
	case "deterministic":
		return NewDeterministicProvider(defaultDimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrBackendUnavailable, cfg.Provider)
	}
}
