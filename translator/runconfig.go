package translator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/apedit/go-postedit/terminology"
)

// RunConfigFile is the training-side configuration colocated with the model
// artifacts.
const RunConfigFile = "run_config.json"

// DefaultSrcMaxLen applies when no run configuration is available.
const DefaultSrcMaxLen = 250

// RunConfig carries the data-format settings the model was trained with.
// Inference must tokenize the same way training did, so these are read from
// the model directory rather than configured by the caller.
type RunConfig struct {
	// SrcMaxLen is the longest encoder sequence seen in training.
	SrcMaxLen int `json:"src_max_len"`
	// TerminologyMethod is the terminology mode ("append", "replace", or
	// empty/null for none).
	TerminologyMethod string `json:"terminology_method"`
	// TerminologyTerm is the separator between a term and its hints.
	TerminologyTerm string `json:"terminology_term"`
}

func defaultRunConfig() RunConfig {
	return RunConfig{
		SrcMaxLen:       DefaultSrcMaxLen,
		TerminologyTerm: terminology.DefaultSeparator,
	}
}

// LoadRunConfig reads run_config.json from the model directory. A missing or
// unreadable file is degraded, not fatal: the defaults (max length 250, no
// terminology, "~" separator) are returned with a warning.
func LoadRunConfig(modelDir string) RunConfig {
	path := filepath.Join(modelDir, RunConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		klog.Warningf("Can't read %q, falling back to default run configuration: %v", path, err)
		return defaultRunConfig()
	}
	cfg := defaultRunConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		klog.Warningf("Can't parse %q, falling back to default run configuration: %v", path, err)
		return defaultRunConfig()
	}
	if cfg.SrcMaxLen <= 0 {
		cfg.SrcMaxLen = DefaultSrcMaxLen
	}
	if cfg.TerminologyTerm == "" {
		cfg.TerminologyTerm = terminology.DefaultSeparator
	}
	return cfg
}
