package translator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apedit/go-postedit/model"
	"github.com/apedit/go-postedit/nlp/lexicon"
	"github.com/apedit/go-postedit/terminology"
	"github.com/apedit/go-postedit/terms"
	"github.com/apedit/go-postedit/tokenizers/factored"
)

var testVocab = strings.Join([]string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"he", "builds", "red", "house", "##s", "likes", "the", "world", "hello", ".",
}, "\n") + "\n"

func writeModelDir(t *testing.T, runConfig string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(testVocab), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer_config.json"),
		[]byte(`{"do_lower_case": false}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "special_tokens_map.json"),
		[]byte(`{"unk_token": "[UNK]", "pad_token": "[PAD]", "cls_token": "[CLS]", "sep_token": "[SEP]"}`), 0644))
	if runConfig != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, RunConfigFile), []byte(runConfig), 0644))
	}
	return dir
}

// countingGenerator wraps another generator and records batch sizes.
type countingGenerator struct {
	inner model.Generator
	sizes []int
}

func (g *countingGenerator) Generate(ctx context.Context, batch *factored.Batch, opts model.Options) ([][]int, error) {
	g.sizes = append(g.sizes, batch.Size())
	return g.inner.Generate(ctx, batch, opts)
}

func TestPostEditEchoIsNoOp(t *testing.T) {
	dir := writeModelDir(t, "")
	gen := &countingGenerator{inner: model.Echo{}}
	tr, err := New(dir, Options{SrcLang: "de", TgtLang: "en", Generator: gen})
	require.NoError(t, err)

	src := []string{"s1", "s2", "s3", "s4", "s5"}
	mt := []string{
		"he builds red houses.",
		"hello world",
		"the red house",
		"he likes houses",
		"hello",
	}
	got, err := tr.PostEdit(context.Background(), src, mt, PostEditOptions{ChunkSize: 2})
	require.NoError(t, err)

	// The echo generator returns each segment's own MT text, in input order.
	assert.Equal(t, mt, got)
	// 5 segments at chunk size 2 make chunks of [2, 2, 1].
	assert.Equal(t, []int{2, 2, 1}, gen.sizes)
}

func TestPostEditEmptyInput(t *testing.T) {
	dir := writeModelDir(t, "")
	tr, err := New(dir, Options{SrcLang: "de", TgtLang: "en", Generator: model.Echo{}})
	require.NoError(t, err)

	got, err := tr.PostEdit(context.Background(), nil, nil, PostEditOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostEditLengthMismatch(t *testing.T) {
	dir := writeModelDir(t, "")
	tr, err := New(dir, Options{SrcLang: "de", TgtLang: "en", Generator: model.Echo{}})
	require.NoError(t, err)

	_, err = tr.PostEdit(context.Background(), []string{"a", "b"}, []string{"x"}, PostEditOptions{})
	require.Error(t, err)
}

func TestPostEditWithTerminology(t *testing.T) {
	dir := writeModelDir(t, `{"src_max_len": 100, "terminology_method": "append", "terminology_term": "~"}`)

	tagger := lexicon.New(map[string]lexicon.Entry{
		"houses": {Lemma: "house", POS: "NOUN"},
		"house":  {Lemma: "house", POS: "NOUN"},
	})
	proc, err := terminology.New(tagger, tagger, nil,
		terms.Dictionary{"houses": "house"}, terminology.Config{})
	require.NoError(t, err)

	gen := &recordingGenerator{inner: model.Echo{}}
	tr, err := New(dir, Options{SrcLang: "en", TgtLang: "en", Generator: gen, Terminology: proc})
	require.NoError(t, err)

	got, err := tr.PostEdit(context.Background(),
		[]string{"he builds houses"}, []string{"he builds red houses"}, PostEditOptions{})
	require.NoError(t, err)
	// Hints change the encoder input, never the echoed MT output.
	assert.Equal(t, []string{"he builds red houses"}, got)

	// The batch carries terminology factors for the encoded word.
	require.NotNil(t, gen.batch)
	assert.Contains(t, gen.batch.FactorIDs[0], int(factored.FactorSourceOriginal))
	assert.Contains(t, gen.batch.FactorIDs[0], int(factored.FactorSourceHint))
}

// recordingGenerator keeps the last batch it saw.
type recordingGenerator struct {
	inner model.Generator
	batch *factored.Batch
}

func (g *recordingGenerator) Generate(ctx context.Context, batch *factored.Batch, opts model.Options) ([][]int, error) {
	g.batch = batch
	return g.inner.Generate(ctx, batch, opts)
}

// brokenGenerator always returns a single row regardless of batch size.
type brokenGenerator struct{}

func (brokenGenerator) Generate(context.Context, *factored.Batch, model.Options) ([][]int, error) {
	return [][]int{{4}}, nil
}

func TestPostEditOutputMismatchFatal(t *testing.T) {
	dir := writeModelDir(t, "")
	tr, err := New(dir, Options{SrcLang: "de", TgtLang: "en", Generator: brokenGenerator{}})
	require.NoError(t, err)

	_, err = tr.PostEdit(context.Background(),
		[]string{"a", "b"}, []string{"hello", "world"}, PostEditOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutputMismatch))
}

func TestPostEditCanceledContext(t *testing.T) {
	dir := writeModelDir(t, "")
	tr, err := New(dir, Options{SrcLang: "de", TgtLang: "en", Generator: model.Echo{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.PostEdit(ctx, []string{"a"}, []string{"hello"}, PostEditOptions{})
	require.Error(t, err)
}

func TestNewMissingArtifact(t *testing.T) {
	dir := t.TempDir() // no vocab.txt
	_, err := New(dir, Options{SrcLang: "de", TgtLang: "en", Generator: model.Echo{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vocab.txt")
}

func TestNewRequiresGenerator(t *testing.T) {
	dir := writeModelDir(t, "")
	_, err := New(dir, Options{SrcLang: "de", TgtLang: "en"})
	require.Error(t, err)
}

func TestLoadRunConfig(t *testing.T) {
	dir := writeModelDir(t, `{"src_max_len": 128, "terminology_method": "replace", "terminology_term": "#"}`)
	cfg := LoadRunConfig(dir)
	assert.Equal(t, RunConfig{SrcMaxLen: 128, TerminologyMethod: "replace", TerminologyTerm: "#"}, cfg)
}

func TestLoadRunConfigFallback(t *testing.T) {
	want := RunConfig{SrcMaxLen: 250, TerminologyMethod: "", TerminologyTerm: "~"}

	// Missing file.
	assert.Equal(t, want, LoadRunConfig(t.TempDir()))

	// Unparsable file.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RunConfigFile), []byte("{nope"), 0644))
	assert.Equal(t, want, LoadRunConfig(dir))
}
