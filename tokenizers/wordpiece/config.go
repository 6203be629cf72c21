package wordpiece

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/apedit/go-postedit/internal/files"
)

// tokenizerConfig mirrors the subset of tokenizer_config.json we honor.
type tokenizerConfig struct {
	DoLowerCase  bool `json:"do_lower_case"`
	StripAccents bool `json:"strip_accents"`
}

// specialTokensMap mirrors special_tokens_map.json. Values are either plain
// strings or {"content": ...} objects depending on the exporter.
type specialTokensMap struct {
	UnkToken  specialTokenRef `json:"unk_token"`
	PadToken  specialTokenRef `json:"pad_token"`
	ClsToken  specialTokenRef `json:"cls_token"`
	SepToken  specialTokenRef `json:"sep_token"`
	MaskToken specialTokenRef `json:"mask_token"`
}

type specialTokenRef string

func (s *specialTokenRef) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*s = specialTokenRef(plain)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = specialTokenRef(obj.Content)
	return nil
}

// loadOptions assembles Options from the optional config artifacts in dir.
func loadOptions(dir string) (Options, error) {
	var opts Options

	configPath := filepath.Join(dir, "tokenizer_config.json")
	if files.IsFile(configPath) {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return opts, errors.Wrapf(err, "failed to read %q", configPath)
		}
		var cfg tokenizerConfig
		if err := json.Unmarshal(content, &cfg); err != nil {
			return opts, errors.Wrapf(err, "failed to parse %q", configPath)
		}
		opts.Lowercase = cfg.DoLowerCase
		opts.StripAccents = cfg.StripAccents
	}

	mapPath := filepath.Join(dir, "special_tokens_map.json")
	if files.IsFile(mapPath) {
		content, err := os.ReadFile(mapPath)
		if err != nil {
			return opts, errors.Wrapf(err, "failed to read %q", mapPath)
		}
		var m specialTokensMap
		if err := json.Unmarshal(content, &m); err != nil {
			return opts, errors.Wrapf(err, "failed to parse %q", mapPath)
		}
		opts.UnkToken = string(m.UnkToken)
		opts.PadToken = string(m.PadToken)
		opts.ClsToken = string(m.ClsToken)
		opts.SepToken = string(m.SepToken)
		opts.MaskToken = string(m.MaskToken)
	}

	return opts, nil
}
