package service

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apedit/go-postedit/model"
	"github.com/apedit/go-postedit/terms"
	"github.com/apedit/go-postedit/translator"
)

var testVocab = strings.Join([]string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"he", "builds", "red", "house", "##s", "hello", "world", ".",
}, "\n") + "\n"

func newEchoService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(testVocab), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer_config.json"),
		[]byte(`{"do_lower_case": false}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "special_tokens_map.json"),
		[]byte(`{"unk_token": "[UNK]", "pad_token": "[PAD]", "cls_token": "[CLS]", "sep_token": "[SEP]"}`), 0644))

	tr, err := translator.New(dir, translator.Options{
		SrcLang:   "de",
		TgtLang:   "en",
		Generator: model.Echo{},
	})
	require.NoError(t, err)

	svc := New()
	require.NoError(t, svc.RegisterTranslator("de", "en", tr))
	return svc
}

func TestTranslateEcho(t *testing.T) {
	svc := newEchoService(t)

	req := Request{
		SrcLang: "de",
		TrgLang: "en",
		Segments: []Segment{
			{ID: "seg-1", SrcText: "a", MTText: "he builds red houses."},
			{SrcText: "b", MTText: "hello world"},
		},
	}
	resp, err := svc.Translate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Segments, 2)
	// The echo model post-edits every segment to its own MT text.
	assert.Equal(t, "seg-1", resp.Segments[0].ID)
	assert.Equal(t, "he builds red houses.", resp.Segments[0].APEText)
	assert.Equal(t, "hello world", resp.Segments[1].APEText)
	assert.Equal(t, StageAPE, resp.Segments[0].Stage())
	// A segment without an id gets one assigned.
	assert.NotEmpty(t, resp.Segments[1].ID)
}

func TestTranslateUnknownPair(t *testing.T) {
	svc := newEchoService(t)

	_, err := svc.Translate(context.Background(), Request{
		SrcLang:  "en",
		TrgLang:  "de",
		Segments: []Segment{{SrcText: "a", MTText: "b"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPair))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(err))
}

func TestTranslateUnknownDictionary(t *testing.T) {
	svc := newEchoService(t)

	_, err := svc.Translate(context.Background(), Request{
		SrcLang:       "de",
		TrgLang:       "en",
		Segments:      []Segment{{SrcText: "a", MTText: "b"}},
		SelectedDicts: []string{"no-such-dict"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDictionary))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestTranslateInvalidRequests(t *testing.T) {
	svc := newEchoService(t)

	for name, req := range map[string]Request{
		"no segments":    {SrcLang: "de", TrgLang: "en"},
		"missing source": {SrcLang: "de", TrgLang: "en", Segments: []Segment{{MTText: "x"}}},
		"missing mt":     {SrcLang: "de", TrgLang: "en", Segments: []Segment{{SrcText: "x"}}},
		"bad language":   {SrcLang: "??", TrgLang: "en", Segments: []Segment{{SrcText: "a", MTText: "b"}}},
	} {
		_, err := svc.Translate(context.Background(), req)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidRequest), name)
		assert.Equal(t, http.StatusBadRequest, HTTPStatus(err), name)
	}
}

func TestPairKey(t *testing.T) {
	key, err := PairKey("DE", "fr")
	require.NoError(t, err)
	assert.Equal(t, "de-fr", key)

	_, err = PairKey("not a language", "fr")
	require.Error(t, err)
}

func TestSegmentStageTransitions(t *testing.T) {
	seg := NewSegment("Dies ist ein Beispielsatz.")
	assert.NotEmpty(t, seg.ID)
	assert.Equal(t, StageSource, seg.Stage())

	seg, err := seg.WithMT("This is an example sentence.")
	require.NoError(t, err)
	assert.Equal(t, StageMT, seg.Stage())

	seg, err = seg.WithAPE("This is a sample sentence.")
	require.NoError(t, err)
	assert.Equal(t, StageAPE, seg.Stage())

	seg, err = seg.WithHPE("This is a sample sentence!")
	require.NoError(t, err)
	assert.Equal(t, StageHPE, seg.Stage())
}

func TestSegmentInvalidTransitions(t *testing.T) {
	seg := NewSegment("src")

	// Cannot post-edit before a machine translation exists.
	_, err := seg.WithAPE("ape")
	require.Error(t, err)

	// Cannot re-add a machine translation.
	withMT, err := seg.WithMT("mt")
	require.NoError(t, err)
	_, err = withMT.WithMT("mt again")
	require.Error(t, err)

	// Out-of-order fields fail validation.
	err = Segment{ID: "x", SrcText: "s", APEText: "a"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestRegisterDictionaryFiltersMultiWord(t *testing.T) {
	svc := New()
	dict := terms.Dictionary{"single": "word", "two words": "entry"}

	svc.RegisterDictionary("filtered", dict, false)
	assert.Equal(t, terms.Dictionary{"single": "word"}, svc.dictionaries["filtered"])

	svc.RegisterDictionary("full", dict, true)
	assert.Equal(t, dict, svc.dictionaries["full"])
}

func TestMergedDictionaryPrecedence(t *testing.T) {
	svc := New()
	svc.RegisterDictionary("base", terms.Dictionary{"a": "1", "b": "1"}, true)
	svc.RegisterDictionary("override", terms.Dictionary{"b": "2"}, true)

	merged := svc.mergedDictionary(Request{
		SelectedDicts: []string{"base", "override"},
		UserDict:      terms.Dictionary{"a": "user"},
	})
	assert.Equal(t, terms.Dictionary{"a": "user", "b": "2"}, merged)

	assert.Nil(t, svc.mergedDictionary(Request{}))
}

func TestLoadDictionaries(t *testing.T) {
	dir := t.TempDir()
	csv := "source,target\nHaus,house\nHäuser Bau,house building\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d1.csv"), []byte(csv), 0644))

	svc := New()
	require.NoError(t, svc.LoadDictionaries(dir, []string{"d1"}, false))
	assert.Equal(t, []string{"d1"}, svc.DictionaryNames())
	// Multi-word entries are filtered out by default.
	assert.Equal(t, terms.Dictionary{"Haus": "house"}, svc.dictionaries["d1"])

	require.Error(t, svc.LoadDictionaries(dir, []string{"missing"}, false))
}

// parquetRow mirrors the column layout of a Parquet dictionary file.
type parquetRow struct {
	Source string `parquet:"source"`
	Target string `parquet:"target"`
}

func writeParquetDict(t *testing.T, path string, rows []parquetRow) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[parquetRow](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestLoadDictionariesParquet(t *testing.T) {
	dir := t.TempDir()
	writeParquetDict(t, filepath.Join(dir, "d1.parquet"), []parquetRow{
		{Source: "Haus", Target: "house"},
		{Source: "Häuser Bau", Target: "house building"},
	})

	svc := New()
	require.NoError(t, svc.LoadDictionaries(dir, []string{"d1"}, false))
	// Multi-word filtering applies to Parquet dictionaries too.
	assert.Equal(t, terms.Dictionary{"Haus": "house"}, svc.dictionaries["d1"])
}

func TestLoadDictionariesPrefersParquet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d1.csv"),
		[]byte("source,target\nHaus,home\n"), 0644))
	writeParquetDict(t, filepath.Join(dir, "d1.parquet"), []parquetRow{
		{Source: "Haus", Target: "house"},
	})

	svc := New()
	require.NoError(t, svc.LoadDictionaries(dir, []string{"d1"}, false))
	assert.Equal(t, terms.Dictionary{"Haus": "house"}, svc.dictionaries["d1"])
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestSegmentEmptyPostEdit(t *testing.T) {
	seg, err := NewSegment("Quelle").WithMT("machine translation")
	require.NoError(t, err)

	// An empty generation leaves the segment at the MT stage.
	seg, err = seg.WithAPE("")
	require.NoError(t, err)
	assert.Equal(t, StageMT, seg.Stage())

	// The transition stays open until non-empty text arrives.
	seg, err = seg.WithAPE("post-edit")
	require.NoError(t, err)
	assert.Equal(t, StageAPE, seg.Stage())
}
