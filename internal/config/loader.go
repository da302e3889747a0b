package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB, matches the teacher's ceiling.

// Load reads configuration from an optional YAML file, then overrides with
// environment variables, then validates the result.
//
// Precedence (highest to lowest):
//  1. Environment variables (CKG_STORAGE_ROOT, CKG_HNSW_M, ...)
//  2. YAML file at configPath, if non-empty and present
//  3. NewDefaultConfig()
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		info, err := os.Stat(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("stat config file: %w", err)
			}
		} else {
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
			}
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("CKG_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	out := NewDefaultConfig()
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return out, nil
}

// envTransform maps CKG_STORAGE_ROOT -> storage.root, matching the
// underscore-separated env-var convention the teacher's loader documents.
func envTransform(s string) string {
	return koanfEnvKey(s, "CKG_")
}

func koanfEnvKey(s, prefix string) string {
	trimmed := s
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		trimmed = s[len(prefix):]
	}
	out := make([]byte, 0, len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c == '_':
			out = append(out, '.')
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

