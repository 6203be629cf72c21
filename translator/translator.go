// Package translator runs the end-to-end post-editing pipeline: word-level
// tokenization, terminology encoding, fixed-size chunking, factor-tagged
// sub-word tokenization with padding, model generation, and detokenization
// back to plain text. Outputs are returned in input order.
package translator

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/apedit/go-postedit/internal/files"
	"github.com/apedit/go-postedit/internal/par"
	"github.com/apedit/go-postedit/model"
	"github.com/apedit/go-postedit/moses"
	"github.com/apedit/go-postedit/terminology"
	"github.com/apedit/go-postedit/terms"
	"github.com/apedit/go-postedit/tokenizers/api"
	"github.com/apedit/go-postedit/tokenizers/factored"
	"github.com/apedit/go-postedit/tokenizers/wordpiece"
)

const (
	// DefaultChunkSize is the inference batch size.
	DefaultChunkSize = 5
	// DefaultMaxLength bounds generated sequences.
	DefaultMaxLength = 200
	// DefaultNumBeams is the beam search width.
	DefaultNumBeams = 4
	// DefaultWorkers bounds the word-tokenization fan-out.
	DefaultWorkers = 4
)

// ErrOutputMismatch reports a fatal internal-consistency failure: the model
// returned a different number of outputs than the batch had examples. The
// request aborts; retrying would only reproduce the mismatch.
var ErrOutputMismatch = errors.New("generated output count does not match input count")

// requiredArtifacts must all exist in the model directory. A missing one is
// fatal at construction, not at request time.
var requiredArtifacts = []string{
	"vocab.txt",
	"tokenizer_config.json",
	"special_tokens_map.json",
}

// Options configure a Translator.
type Options struct {
	// SrcLang and TgtLang are lowercase language codes; they select the
	// word-level tokenization rules.
	SrcLang string
	TgtLang string

	// Generator produces output token ids for padded batches.
	Generator model.Generator

	// Terminology optionally injects dictionary hints into source sentences
	// before sub-word tokenization. Nil disables terminology encoding.
	Terminology *terminology.Processor

	// Workers bounds the parallel word tokenization/detokenization fan-out.
	// Zero means DefaultWorkers.
	Workers int
}

// Translator is the post-editing pipeline for one language pair. Read-only
// after construction and safe for concurrent use as long as the Generator is.
type Translator struct {
	opts      Options
	runConfig RunConfig

	base    api.Tokenizer
	factTok *factored.Tokenizer

	srcWordTok *moses.Tokenizer
	mtWordTok  *moses.Tokenizer
	wordDetok  *moses.Detokenizer

	decoderStartID int
}

// New loads the tokenizer artifacts and run configuration from modelDir and
// assembles the pipeline. Missing tokenizer artifacts are fatal; a missing
// or unreadable run_config.json falls back to defaults with a warning.
func New(modelDir string, opts Options) (*Translator, error) {
	if opts.Generator == nil {
		return nil, errors.New("a generator is required")
	}
	for _, name := range requiredArtifacts {
		if !files.IsFile(filepath.Join(modelDir, name)) {
			return nil, errors.Errorf("model directory %q is missing required artifact %q", modelDir, name)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	base, err := wordpiece.Load(modelDir)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading tokenizer from %q", modelDir)
	}
	runConfig := LoadRunConfig(modelDir)
	method, err := factored.ParseMethod(runConfig.TerminologyMethod)
	if err != nil {
		return nil, err
	}
	factTok, err := factored.New(base, method, runConfig.TerminologyTerm)
	if err != nil {
		return nil, err
	}
	startID, err := base.SpecialTokenID(api.TokClassification)
	if err != nil {
		return nil, err
	}

	return &Translator{
		opts:           opts,
		runConfig:      runConfig,
		base:           base,
		factTok:        factTok,
		srcWordTok:     moses.NewTokenizer(opts.SrcLang, true),
		mtWordTok:      moses.NewTokenizer(opts.TgtLang, true),
		wordDetok:      moses.NewDetokenizer(opts.TgtLang),
		decoderStartID: startID,
	}, nil
}

// RunConfig returns the effective run configuration.
func (t *Translator) RunConfig() RunConfig { return t.runConfig }

// PostEditOptions tune one PostEdit call.
type PostEditOptions struct {
	// Dictionary is merged-in terminology for this call; nil uses the
	// processor's default dictionary.
	Dictionary terms.Dictionary

	// ChunkSize is the number of segments per model call. Zero means
	// DefaultChunkSize.
	ChunkSize int

	// SkipWordTokenize treats the inputs as already word-tokenized.
	SkipWordTokenize bool

	// SkipWordDetokenize returns space-joined word tokens instead of
	// detokenized sentences.
	SkipWordDetokenize bool
}

// PostEdit post-edits the (source, machine translation) pairs and returns
// one output string per pair, in input order. src and mt must have equal
// length. Chunks are processed sequentially; within a chunk only word-level
// tokenization fans out in parallel.
func (t *Translator) PostEdit(ctx context.Context, src, mt []string, opts PostEditOptions) ([]string, error) {
	if len(src) != len(mt) {
		return nil, errors.Errorf("got %d source segments but %d machine translations", len(src), len(mt))
	}
	if len(src) == 0 {
		return []string{}, nil
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	var err error
	if !opts.SkipWordTokenize {
		if src, err = t.wordTokenize(src, t.srcWordTok); err != nil {
			return nil, err
		}
		if mt, err = t.wordTokenize(mt, t.mtWordTok); err != nil {
			return nil, err
		}
	}

	if t.opts.Terminology != nil {
		if src, err = t.opts.Terminology.EncodeFromDict(src, opts.Dictionary); err != nil {
			return nil, errors.WithMessage(err, "terminology encoding")
		}
	} else if opts.Dictionary != nil {
		klog.Warning("A terminology dictionary was supplied but the translator has no terminology processor; ignoring it")
	}

	preds := make([]string, 0, len(src))
	for start := 0; start < len(src); start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(src))
		klog.V(1).Infof("Post-editing chunk [%d:%d] of %d segments", start, end, len(src))
		chunkPreds, err := t.postEditChunk(ctx, src[start:end], mt[start:end])
		if err != nil {
			return nil, err
		}
		preds = append(preds, chunkPreds...)
	}
	if len(preds) != len(src) {
		return nil, errors.Wrapf(ErrOutputMismatch, "got %d outputs for %d inputs", len(preds), len(src))
	}

	if opts.SkipWordDetokenize {
		return preds, nil
	}
	return par.Map(preds, t.opts.Workers, func(line string) (string, error) {
		return t.wordDetok.DetokenizeString(line), nil
	})
}

func (t *Translator) wordTokenize(lines []string, tok *moses.Tokenizer) ([]string, error) {
	return par.Map(lines, t.opts.Workers, func(line string) (string, error) {
		return tok.TokenizeToString(line), nil
	})
}

func (t *Translator) postEditChunk(ctx context.Context, src, mt []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encodings := make([]*factored.Encoding, len(src))
	for i := range src {
		enc, err := t.factTok.Tokenize(factored.Example{Src: src[i], MT: mt[i]})
		if err != nil {
			return nil, err
		}
		if enc.EncoderLen() > t.runConfig.SrcMaxLen {
			klog.Warningf("Segment of %d tokens exceeds the trained maximum of %d; quality may degrade", enc.EncoderLen(), t.runConfig.SrcMaxLen)
		}
		encodings[i] = enc
	}
	batch, err := t.factTok.Pad(encodings, factored.PadOptions{})
	if err != nil {
		return nil, err
	}

	outputs, err := t.opts.Generator.Generate(ctx, batch, model.Options{
		DecoderStartID: t.decoderStartID,
		MaxLength:      DefaultMaxLength,
		NumBeams:       DefaultNumBeams,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "generating")
	}
	if len(outputs) != batch.Size() {
		return nil, errors.Wrapf(ErrOutputMismatch, "model returned %d rows for a batch of %d", len(outputs), batch.Size())
	}

	preds := make([]string, len(outputs))
	for i, ids := range outputs {
		preds[i] = t.base.Decode(ids, true)
	}
	return preds, nil
}
