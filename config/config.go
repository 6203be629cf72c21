// Package config loads the service configuration from the environment.
package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/apedit/go-postedit/internal/files"
)

// Config is the deployment configuration of the post-editing service.
type Config struct {
	// ModelDir holds one model artifact directory per language pair, named
	// by ModelName.
	ModelDir string
	// DictionaryDir holds one <name>.csv or <name>.parquet per configured
	// dictionary.
	DictionaryDir string

	// LanguagePairs lists the served pairs as "src-trg" codes.
	LanguagePairs []string
	// Dictionaries names the terminology dictionaries to load at startup.
	Dictionaries []string
	// EnableNToNDicts keeps multi-word dictionary entries instead of
	// filtering them.
	EnableNToNDicts bool

	// MockModel serves the echo model instead of loading real weights.
	MockModel bool
	// ChunkSize is the number of segments per model call.
	ChunkSize int
	// Workers bounds the word tokenization fan-out per request.
	Workers int
}

// Load reads the configuration from environment variables, applying
// defaults for everything but the language pairs.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("MODEL_DIR", "/app/models")
	v.SetDefault("DICTIONARY_DIR", "/dictionaries")
	v.SetDefault("ENABLE_N_TO_N_DICTS", false)
	v.SetDefault("MOCK_MODEL", false)
	v.SetDefault("CHUNK_SIZE", 5)
	v.SetDefault("WORKERS", 4)

	cfg := &Config{
		ModelDir:        v.GetString("MODEL_DIR"),
		DictionaryDir:   v.GetString("DICTIONARY_DIR"),
		LanguagePairs:   splitList(v.GetString("LANGUAGE_PAIRS")),
		Dictionaries:    splitList(v.GetString("DICTIONARIES")),
		EnableNToNDicts: v.GetBool("ENABLE_N_TO_N_DICTS"),
		MockModel:       v.GetBool("MOCK_MODEL"),
		ChunkSize:       v.GetInt("CHUNK_SIZE"),
		Workers:         v.GetInt("WORKERS"),
	}
	if len(cfg.LanguagePairs) == 0 {
		return nil, errors.New("LANGUAGE_PAIRS must name at least one language pair")
	}
	for _, pair := range cfg.LanguagePairs {
		if _, _, ok := SplitPair(pair); !ok {
			return nil, errors.Errorf("malformed language pair %q, want src-trg", pair)
		}
	}
	return cfg, nil
}

// SplitPair splits a "src-trg" pair into its language codes.
func SplitPair(pair string) (src, trg string, ok bool) {
	src, trg, found := strings.Cut(pair, "-")
	if !found || src == "" || trg == "" {
		return "", "", false
	}
	return src, trg, true
}

// ModelName is the artifact directory name for a language pair.
func ModelName(pair string) string {
	return "ape-model-" + pair
}

// ModelPath is the artifact directory for a language pair.
func (c *Config) ModelPath(pair string) string {
	return filepath.Join(c.ModelDir, ModelName(pair))
}

// DictionaryPath is the file for a dictionary name: <name>.parquet when
// present, else <name>.csv.
func (c *Config) DictionaryPath(name string) string {
	if path := filepath.Join(c.DictionaryDir, name+".parquet"); files.IsFile(path) {
		return path
	}
	return filepath.Join(c.DictionaryDir, name+".csv")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
