// Package terminology encodes source sentences with embedded terminology
// hints: the desired target term is spliced next to the word it should
// influence, separated by a marker character, to steer generation.
//
// Two independent encoding paths exist. The alignment-driven path uses a
// word aligner plus POS/lemma tagging on parallel (source, target) sentences
// and is used to prepare training data. The dictionary-driven path matches
// source-token lemmas against a dictionary and is used at inference time.
package terminology

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/apedit/go-postedit/nlp"
	"github.com/apedit/go-postedit/terms"
)

// DefaultSeparator joins a token with its terminology hint: "token~hint".
const DefaultSeparator = "~"

// ErrTaggerDesync reports a fatal consistency failure: the tagger returned a
// different number of tokens than the naive whitespace split of the same
// sentence. The tagger and the pipeline's word tokenization disagree, and no
// factor bookkeeping downstream can be trusted.
var ErrTaggerDesync = errors.New("tagger output length does not match whitespace tokenization")

// Config controls how tokens are selected for encoding.
type Config struct {
	// EncodePOS lists the universal POS tags eligible for alignment-driven
	// encoding. Default: NOUN and VERB.
	EncodePOS []string

	// ThresholdRange is the uniform range the per-sentence annotation
	// threshold is drawn from. A token is spliced when a fresh uniform draw
	// exceeds the sentence threshold (and exactly one candidate hint
	// exists), so (1, 1) disables splicing and (0, 0) always splices.
	ThresholdRange [2]float64

	// UseLemma encodes the hint as the aligned target token's lemma rather
	// than its surface form. Default true.
	UseLemma *bool

	// Separator between a token and its hints. Default "~".
	Separator string

	// Seed for the annotation-threshold RNG. Zero seeds from the clock.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.EncodePOS == nil {
		c.EncodePOS = []string{"NOUN", "VERB"}
	}
	if c.ThresholdRange == [2]float64{} {
		c.ThresholdRange = [2]float64{0.0, 1.0}
	}
	if c.UseLemma == nil {
		t := true
		c.UseLemma = &t
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Processor implements both encoding paths over shared tagging resources.
// It is safe for concurrent use once constructed.
type Processor struct {
	srcTagger nlp.Tagger
	tgtTagger nlp.Tagger
	aligner   nlp.Aligner // nil when only dictionary-driven encoding is needed

	cfg       Config
	encodePOS map[string]bool

	// defaultDict is keyed by source lemma, resolved at construction.
	defaultDict terms.Dictionary

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Processor. aligner may be nil when Encode is never called
// (inference-time processors only need EncodeFromDict). defaultDict, if
// non-nil, is the fallback dictionary for EncodeFromDict; its keys are
// lemmatized through srcTagger.
func New(srcTagger, tgtTagger nlp.Tagger, aligner nlp.Aligner, defaultDict terms.Dictionary, cfg Config) (*Processor, error) {
	cfg = cfg.withDefaults()
	p := &Processor{
		srcTagger: srcTagger,
		tgtTagger: tgtTagger,
		aligner:   aligner,
		cfg:       cfg,
		encodePOS: make(map[string]bool, len(cfg.EncodePOS)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, pos := range cfg.EncodePOS {
		p.encodePOS[pos] = true
	}
	if defaultDict != nil {
		mapped, err := p.LemmaMapping(defaultDict)
		if err != nil {
			return nil, errors.WithMessage(err, "resolving default dictionary lemmas")
		}
		p.defaultDict = mapped
	}
	return p, nil
}

// Separator returns the configured hint separator.
func (p *Processor) Separator() string { return p.cfg.Separator }

// LemmaMapping rekeys a dictionary from source surface forms to source
// lemmas, so inflected occurrences of a term still match. The lemma of a
// multi-word key is the lemma of its first word.
func (p *Processor) LemmaMapping(dict terms.Dictionary) (terms.Dictionary, error) {
	if len(dict) == 0 {
		return nil, nil
	}
	keys := dict.Keys()
	sentences := make([][]string, len(keys))
	for i, k := range keys {
		sentences[i] = strings.Fields(k)
	}
	tagged, err := p.srcTagger.Tag(sentences)
	if err != nil {
		return nil, errors.WithMessage(err, "tagging dictionary keys")
	}
	mapped := make(terms.Dictionary, len(keys))
	for i, k := range keys {
		if len(tagged[i]) == 0 {
			continue
		}
		mapped[tagged[i][0].Lemma] = dict[k]
	}
	return mapped, nil
}

// Encode runs alignment-driven terminology encoding over word-tokenized
// parallel sentences (words joined by single spaces). alignments may be nil,
// in which case the configured aligner computes them.
//
// For each source token, the lemmas (or surfaces) of its aligned target
// tokens are collected, filtered to matching POS tags within the configured
// set, and sorted lexicographically. The token is spliced with its hint only
// when exactly one candidate remains and the per-token draw clears the
// sentence threshold; otherwise it is left unmodified.
func (p *Processor) Encode(src, tgt []string, alignments []nlp.Alignment) ([]string, error) {
	if len(src) != len(tgt) {
		return nil, errors.Errorf("source/target sentence count mismatch: %d vs %d", len(src), len(tgt))
	}
	if len(src) == 0 {
		return nil, nil
	}
	if alignments == nil {
		if p.aligner == nil {
			return nil, errors.New("no aligner configured and no alignments supplied")
		}
		alignments = make([]nlp.Alignment, len(src))
		for i := range src {
			a, err := p.aligner.Align(strings.Fields(src[i]), strings.Fields(tgt[i]))
			if err != nil {
				return nil, errors.WithMessagef(err, "aligning sentence %d", i)
			}
			alignments[i] = a
		}
	}
	if len(alignments) != len(src) {
		return nil, errors.Errorf("alignment count mismatch: %d vs %d sentences", len(alignments), len(src))
	}

	srcInfos, err := p.tagChecked(p.srcTagger, src)
	if err != nil {
		return nil, err
	}
	tgtInfos, err := p.tagChecked(p.tgtTagger, tgt)
	if err != nil {
		return nil, err
	}

	encoded := make([]string, len(src))
	for i := range src {
		encoded[i] = p.encodeOne(src[i], alignments[i], srcInfos[i], tgtInfos[i], strings.Fields(tgt[i]))
	}
	return encoded, nil
}

// tagChecked tags sentences and enforces that the tagger preserved the
// whitespace tokenization. A mismatch is fatal, not recoverable.
func (p *Processor) tagChecked(tagger nlp.Tagger, sentences []string) ([][]nlp.Token, error) {
	pretokenized := make([][]string, len(sentences))
	for i, s := range sentences {
		pretokenized[i] = strings.Fields(s)
	}
	infos, err := tagger.Tag(pretokenized)
	if err != nil {
		return nil, errors.WithMessage(err, "tagging sentences")
	}
	for i := range sentences {
		if len(infos[i]) != len(pretokenized[i]) {
			return nil, errors.Wrapf(ErrTaggerDesync, "sentence %d: %d tagged tokens vs %d words", i, len(infos[i]), len(pretokenized[i]))
		}
	}
	return infos, nil
}

func (p *Processor) encodeOne(src string, alignment nlp.Alignment, srcInfo, tgtInfo []nlp.Token, tgtWords []string) string {
	threshold := p.uniform(p.cfg.ThresholdRange[0], p.cfg.ThresholdRange[1])

	words := strings.Fields(src)
	encoded := make([]string, len(words))
	for i, word := range words {
		var candidates []string
		for j := range tgtInfo {
			if !alignment.Contains(i, j) {
				continue
			}
			if !p.encodePOS[tgtInfo[j].POS] || tgtInfo[j].POS != srcInfo[i].POS {
				continue
			}
			if *p.cfg.UseLemma {
				candidates = append(candidates, tgtInfo[j].Lemma)
			} else {
				candidates = append(candidates, tgtWords[j])
			}
		}
		// Alignment iteration order must not leak into the output.
		sort.Strings(candidates)

		if len(candidates) == 1 && p.draw() > threshold {
			encoded[i] = word + p.cfg.Separator + candidates[0]
		} else {
			encoded[i] = word
		}
	}
	return strings.Join(encoded, " ")
}

func (p *Processor) uniform(lo, hi float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + p.rng.Float64()*(hi-lo)
}

func (p *Processor) draw() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// EncodeLines batches Encode over many lines; batchSize bounds how many
// sentences reach the tagger per call and is independent of any
// translation batch size.
func (p *Processor) EncodeLines(src, tgt []string, alignments []nlp.Alignment, batchSize int) ([]string, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	result := make([]string, 0, len(src))
	for start := 0; start < len(src); start += batchSize {
		end := min(start+batchSize, len(src))
		var batchAlignments []nlp.Alignment
		if alignments != nil {
			batchAlignments = alignments[start:end]
		}
		encoded, err := p.Encode(src[start:end], tgt[start:end], batchAlignments)
		if err != nil {
			return nil, err
		}
		result = append(result, encoded...)
	}
	return result, nil
}

// EncodeFromDict runs dictionary-driven encoding over word-tokenized source
// sentences. dict maps source surface terms to target terms; nil falls back
// to the processor's default dictionary. When neither exists the input is
// returned unmodified with a warning; that is degraded, not fatal.
//
// Matching is on the lemma of each source token, case-sensitive, and every
// matching token in a sentence is encoded (unlike the alignment path, which
// splices at most one hint per token).
func (p *Processor) EncodeFromDict(src []string, dict terms.Dictionary) ([]string, error) {
	lemmaDict := p.defaultDict
	if dict != nil {
		mapped, err := p.LemmaMapping(dict)
		if err != nil {
			return nil, err
		}
		lemmaDict = mapped
	}
	if len(lemmaDict) == 0 {
		klog.Warning("No terminology dictionary supplied and no default configured; returning sentences unmodified")
		return append([]string(nil), src...), nil
	}

	pretokenized := make([][]string, len(src))
	for i, s := range src {
		pretokenized[i] = strings.Fields(s)
	}
	infos, err := p.srcTagger.Tag(pretokenized)
	if err != nil {
		return nil, errors.WithMessage(err, "tagging source sentences")
	}

	encoded := make([]string, len(src))
	for i := range src {
		words := make([]string, len(infos[i]))
		for j, tok := range infos[i] {
			if target, ok := lemmaDict[tok.Lemma]; ok {
				words[j] = tok.Surface + p.cfg.Separator + target
			} else {
				words[j] = tok.Surface
			}
		}
		encoded[i] = strings.Join(words, " ")
	}
	return encoded, nil
}

// EncodeFromDictLines batches EncodeFromDict with an independent lemmatizer
// batch size.
func (p *Processor) EncodeFromDictLines(src []string, dict terms.Dictionary, batchSize int) ([]string, error) {
	if batchSize <= 0 || batchSize >= len(src) {
		return p.EncodeFromDict(src, dict)
	}
	result := make([]string, 0, len(src))
	for start := 0; start < len(src); start += batchSize {
		end := min(start+batchSize, len(src))
		encoded, err := p.EncodeFromDict(src[start:end], dict)
		if err != nil {
			return nil, err
		}
		result = append(result, encoded...)
	}
	return result, nil
}

// Strip removes every separator-delimited hint from an encoded sentence,
// recovering the original surface tokens.
func Strip(encoded, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}
	words := strings.Fields(encoded)
	for i, word := range words {
		if idx := strings.Index(word, separator); idx >= 0 {
			words[i] = word[:idx]
		}
	}
	return strings.Join(words, " ")
}
