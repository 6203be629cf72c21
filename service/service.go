// Package service is the request/response layer over the post-editing
// pipeline: it keeps a translator per language pair and a set of named
// terminology dictionaries, validates incoming requests, and post-edits
// segment batches while preserving segment identity and order.
package service

import (
	"context"
	"net/http"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"k8s.io/klog/v2"

	"github.com/apedit/go-postedit/internal/files"
	"github.com/apedit/go-postedit/terms"
	"github.com/apedit/go-postedit/translator"
)

// Client errors: the request is at fault and retrying it unchanged will
// fail again.
var (
	ErrUnknownPair       = errors.New("language pair is not available")
	ErrUnknownDictionary = errors.New("unrecognized dictionary selected")
	ErrInvalidRequest    = errors.New("invalid request")
)

// PairKey canonicalizes a language pair into the registry key, e.g.
// ("DE", "fr") -> "de-fr".
func PairKey(srcLang, trgLang string) (string, error) {
	src, err := language.Parse(srcLang)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidRequest, "unparsable source language %q", srcLang)
	}
	trg, err := language.Parse(trgLang)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidRequest, "unparsable target language %q", trgLang)
	}
	srcBase, _ := src.Base()
	trgBase, _ := trg.Base()
	return srcBase.String() + "-" + trgBase.String(), nil
}

// Request is one translation request: segments at the MT stage to be
// post-edited, with optional terminology selection.
type Request struct {
	ID      string `json:"_id,omitempty"`
	SrcLang string `json:"srcLang"`
	TrgLang string `json:"trgLang"`

	Segments []Segment `json:"textSegments"`

	// SelectedDicts names configured dictionaries to apply, in order.
	SelectedDicts []string `json:"selectedDicts,omitempty"`
	// UserDict is an inline dictionary merged over the selected ones.
	UserDict terms.Dictionary `json:"userDict,omitempty"`
}

// Response mirrors the request with every segment advanced to the APE stage.
// Segment ids and order match the request.
type Response struct {
	ID       string    `json:"_id,omitempty"`
	SrcLang  string    `json:"srcLang"`
	TrgLang  string    `json:"trgLang"`
	Segments []Segment `json:"textSegments"`
}

// Service routes requests to per-pair translators. Registrations happen at
// startup; afterwards the service is read-only and safe for concurrent use.
type Service struct {
	translators  map[string]*translator.Translator
	dictionaries map[string]terms.Dictionary
}

// New creates an empty service.
func New() *Service {
	return &Service{
		translators:  make(map[string]*translator.Translator),
		dictionaries: make(map[string]terms.Dictionary),
	}
}

// RegisterTranslator adds the translator serving a language pair.
func (s *Service) RegisterTranslator(srcLang, trgLang string, tr *translator.Translator) error {
	key, err := PairKey(srcLang, trgLang)
	if err != nil {
		return err
	}
	s.translators[key] = tr
	return nil
}

// RegisterDictionary adds a named dictionary. Unless allowNToN is set,
// multi-word entries are filtered out first, since the splicing layer only
// handles single-word terms.
func (s *Service) RegisterDictionary(name string, dict terms.Dictionary, allowNToN bool) {
	if !allowNToN {
		dict = dict.FilterSingleWord()
	}
	s.dictionaries[name] = dict
}

// LoadDictionaries reads every named dictionary from dir and registers it,
// preferring <name>.parquet when present over <name>.csv. A missing
// dictionary is fatal: the configuration names it, so the deployment is
// broken.
func (s *Service) LoadDictionaries(dir string, names []string, allowNToN bool) error {
	for _, name := range names {
		var dict terms.Dictionary
		var err error
		if path := filepath.Join(dir, name+".parquet"); files.IsFile(path) {
			dict, err = terms.LoadParquet(path)
		} else {
			dict, err = terms.Load(filepath.Join(dir, name+".csv"))
		}
		if err != nil {
			return errors.WithMessagef(err, "loading dictionary %q", name)
		}
		s.RegisterDictionary(name, dict, allowNToN)
		klog.Infof("Loaded dictionary %q with %d entries", name, len(s.dictionaries[name]))
	}
	return nil
}

// DictionaryNames returns the registered dictionary names, sorted.
func (s *Service) DictionaryNames() []string {
	names := make([]string, 0, len(s.dictionaries))
	for name := range s.dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Translate post-edits every segment of the request. Validation failures
// (unknown pair, unknown dictionary, malformed segments) surface before any
// model call. Segments without an id get a fresh one; ids and order are
// preserved in the response.
func (s *Service) Translate(ctx context.Context, req Request) (*Response, error) {
	key, err := PairKey(req.SrcLang, req.TrgLang)
	if err != nil {
		return nil, err
	}
	tr, ok := s.translators[key]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPair, "%q", key)
	}
	if len(req.Segments) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "no segments")
	}
	for _, name := range req.SelectedDicts {
		if _, ok := s.dictionaries[name]; !ok {
			return nil, errors.Wrapf(ErrUnknownDictionary, "%q", name)
		}
	}

	segments := make([]Segment, len(req.Segments))
	src := make([]string, len(req.Segments))
	mt := make([]string, len(req.Segments))
	for i, seg := range req.Segments {
		if seg.ID == "" {
			seg.ID = uuid.NewString()
		}
		if err := seg.Validate(); err != nil {
			return nil, err
		}
		if seg.Stage() != StageMT {
			return nil, errors.Wrapf(ErrInvalidRequest, "segment %q is at stage %s, expected %s", seg.ID, seg.Stage(), StageMT)
		}
		segments[i] = seg
		src[i] = seg.SrcText
		mt[i] = seg.MTText
	}

	merged := s.mergedDictionary(req)
	preds, err := tr.PostEdit(ctx, src, mt, translator.PostEditOptions{Dictionary: merged})
	if err != nil {
		return nil, err
	}

	for i := range segments {
		segments[i], err = segments[i].WithAPE(preds[i])
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		ID:       req.ID,
		SrcLang:  req.SrcLang,
		TrgLang:  req.TrgLang,
		Segments: segments,
	}, nil
}

// mergedDictionary combines the selected dictionaries in request order with
// the caller's inline dictionary on top; later entries win key collisions.
// Nil means no terminology was requested.
func (s *Service) mergedDictionary(req Request) terms.Dictionary {
	if len(req.SelectedDicts) == 0 && len(req.UserDict) == 0 {
		return nil
	}
	dicts := make([]terms.Dictionary, 0, len(req.SelectedDicts)+1)
	for _, name := range req.SelectedDicts {
		dicts = append(dicts, s.dictionaries[name])
	}
	if len(req.UserDict) > 0 {
		dicts = append(dicts, req.UserDict)
	}
	return terms.Merge(dicts...)
}

// HTTPStatus maps the error taxonomy to a response status: client errors to
// 4xx, everything else to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownPair):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnknownDictionary), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
