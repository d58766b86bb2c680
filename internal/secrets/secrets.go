// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: doc2x-api-key, mistral-api-key, smms-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Key file names.
const (
	Doc2xKey   = "doc2x-api-key"
	MistralKey = "mistral-api-key"
	SMMSKey    = "smms-api-key"
	OpenAIKey  = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills empty credentials in cfg from secrets. Keys already set by
// configuration or environment win. The conversion key is chosen by the
// configured backend.
func Apply(cfg *types.Config, secrets map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = secrets[key]
		}
	}

	switch cfg.Conversion.Backend {
	case types.BackendDoc2x:
		fill(&cfg.Conversion.APIKey, Doc2xKey)
	case types.BackendMistralOCR:
		fill(&cfg.Conversion.APIKey, MistralKey)
	}
	fill(&cfg.ImageHost.APIKey, SMMSKey)
	if cfg.Summary.Provider != types.ProviderOllama {
		fill(&cfg.Summary.APIKey, OpenAIKey)
	}
	if cfg.Ranking.Provider != types.ProviderOllama {
		fill(&cfg.Ranking.APIKey, OpenAIKey)
	}
}
