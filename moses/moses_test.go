package moses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeBasic(t *testing.T) {
	tok := NewTokenizer("en", false)
	assert.Equal(t,
		[]string{"Hello", ",", "world", "!"},
		tok.Tokenize("Hello, world!"))
}

func TestTokenizeFinalPeriod(t *testing.T) {
	tok := NewTokenizer("de", false)
	assert.Equal(t,
		[]string{"Er", "baut", "Häuser", "."},
		tok.Tokenize("Er baut Häuser."))
	// Numbers and abbreviation-style dotted tokens keep their periods.
	assert.Equal(t,
		[]string{"Pi", "ist", "3.14"},
		tok.Tokenize("Pi ist 3.14"))
}

func TestTokenizeNumberComma(t *testing.T) {
	tok := NewTokenizer("en", false)
	assert.Equal(t,
		[]string{"1,000", "items", ",", "sorted"},
		tok.Tokenize("1,000 items, sorted"))
}

func TestTokenizeEnglishContractions(t *testing.T) {
	tok := NewTokenizer("en", false)
	assert.Equal(t,
		[]string{"it", "'s", "done"},
		tok.Tokenize("it's done"))
}

func TestTokenizeAggressiveDash(t *testing.T) {
	tok := NewTokenizer("en", true)
	assert.Equal(t,
		[]string{"state", "@-@", "of", "@-@", "the", "@-@", "art"},
		tok.Tokenize("state-of-the-art"))

	plain := NewTokenizer("en", false)
	assert.Equal(t, []string{"state-of-the-art"}, plain.Tokenize("state-of-the-art"))
}

func TestTokenizeWhitespaceCollapse(t *testing.T) {
	tok := NewTokenizer("en", false)
	assert.Equal(t, []string{"a", "b"}, tok.Tokenize("  a \t b  "))
	assert.Empty(t, tok.Tokenize("   "))
}

func TestDetokenizeBasic(t *testing.T) {
	detok := NewDetokenizer("en")
	assert.Equal(t, "Hello, world!",
		detok.Detokenize([]string{"Hello", ",", "world", "!"}))
}

func TestDetokenizeDashEscape(t *testing.T) {
	detok := NewDetokenizer("en")
	assert.Equal(t, "state-of-the-art",
		detok.Detokenize([]string{"state", "@-@", "of", "@-@", "the", "@-@", "art"}))
}

func TestDetokenizeBrackets(t *testing.T) {
	detok := NewDetokenizer("en")
	assert.Equal(t, "a (b) c",
		detok.Detokenize([]string{"a", "(", "b", ")", "c"}))
}

func TestDetokenizeQuotes(t *testing.T) {
	detok := NewDetokenizer("en")
	assert.Equal(t, `she said "yes" twice`,
		detok.Detokenize([]string{"she", "said", `"`, "yes", `"`, "twice"}))
}

func TestDetokenizeContractions(t *testing.T) {
	detok := NewDetokenizer("en")
	assert.Equal(t, "it's done",
		detok.Detokenize([]string{"it", "'s", "done"}))
}

func TestRoundTrip(t *testing.T) {
	tok := NewTokenizer("en", true)
	detok := NewDetokenizer("en")
	for _, line := range []string{
		"Hello, world!",
		"The state-of-the-art model (v2) works.",
		"It's done; really!",
	} {
		assert.Equal(t, line, detok.Detokenize(tok.Tokenize(line)), "line %q", line)
	}
}
