// Package moses provides word-level tokenization and detokenization with
// Moses-style rules: punctuation is split off into standalone tokens,
// hyphens between words optionally become the escaped "@-@" token, and the
// detokenizer reattaches punctuation when turning tokens back into a
// sentence. Tokenize and Detokenize are inverse enough for round-tripping
// ordinary prose.
package moses

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DashEscape replaces a word-internal hyphen under aggressive dash splits,
// so it survives as its own token and can be rejoined on detokenization.
const DashEscape = "@-@"

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	// Symbols split off wherever they occur.
	splitAlwaysRE = regexp.MustCompile(`([\[\](){}<>!?;"“”„«»…])`)
	// Commas stay inside numbers (1,000) but split off text.
	commaRE = regexp.MustCompile(`([^0-9]),|,([^0-9])`)
	// Colons and periods stay inside numbers, times and abbreviations
	// (3.14, 12:30, e.g.) but split off word ends.
	colonRE      = regexp.MustCompile(`([^0-9]):([^0-9])|:$`)
	finalDotRE   = regexp.MustCompile(`([^.0-9])\.$`)
	aggressiveRE = regexp.MustCompile(`([\pL\pN])-([\pL\pN])`)
	multiDashRE  = regexp.MustCompile(`-{2,}`)

	englishContractionRE = regexp.MustCompile(`([\pL\pN])(['’](?:s|m|d|re|ve|ll|t))\b`)
	romanceElisionRE     = regexp.MustCompile(`\b([\pL]['’])([\pL])`)
)

// Tokenizer splits sentences into word tokens.
type Tokenizer struct {
	lang           string
	aggressiveDash bool
}

// NewTokenizer creates a tokenizer for the given lowercase language code.
// The language selects apostrophe handling: English splits contractions
// ("it 's"), Romance languages split elisions ("l' avons"), anything else
// leaves apostrophes in place.
func NewTokenizer(lang string, aggressiveDash bool) *Tokenizer {
	return &Tokenizer{lang: strings.ToLower(lang), aggressiveDash: aggressiveDash}
}

// Tokenize splits line into tokens.
func (t *Tokenizer) Tokenize(line string) []string {
	s := whitespaceRE.ReplaceAllString(strings.TrimSpace(line), " ")

	s = splitAlwaysRE.ReplaceAllString(s, " $1 ")
	s = commaRE.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Replace(m, ",", " , ", 1)
	})
	s = colonRE.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Replace(m, ":", " : ", 1)
	})
	s = finalDotRE.ReplaceAllString(s, "$1 .")

	switch t.lang {
	case "en":
		s = englishContractionRE.ReplaceAllString(s, "$1 $2")
	case "fr", "it", "ca":
		s = romanceElisionRE.ReplaceAllString(s, "$1 $2")
	}

	if t.aggressiveDash {
		s = multiDashRE.ReplaceAllStringFunc(s, func(m string) string {
			return " " + strings.Join(strings.Split(m, ""), " ") + " "
		})
		// Reapply until fixpoint: a-b-c needs two passes because the
		// matches share their boundary letters.
		for {
			split := aggressiveRE.ReplaceAllString(s, "$1 "+DashEscape+" $2")
			if split == s {
				break
			}
			s = split
		}
	}

	return strings.Fields(s)
}

// TokenizeToString tokenizes and rejoins with single spaces, the shape the
// terminology and sub-word layers consume.
func (t *Tokenizer) TokenizeToString(line string) string {
	return strings.Join(t.Tokenize(line), " ")
}

// Detokenizer turns token sequences back into sentences.
type Detokenizer struct {
	lang string
}

// NewDetokenizer creates a detokenizer for the given language code.
func NewDetokenizer(lang string) *Detokenizer {
	return &Detokenizer{lang: strings.ToLower(lang)}
}

const (
	attachLeft  = ".,!?;:%…"
	attachRight = "(¿¡" // opening paren, inverted question/exclamation
)

// Detokenize joins tokens, reattaching punctuation and dash escapes. Double
// quotes alternate between opening (attach right) and closing (attach left).
func (d *Detokenizer) Detokenize(tokens []string) string {
	var b strings.Builder
	noSpaceBefore := true
	quoteOpen := false
	for i, tok := range tokens {
		switch {
		case tok == DashEscape:
			b.WriteString("-")
			noSpaceBefore = true
			continue
		case utf8.RuneCountInString(tok) == 1 && strings.ContainsAny(tok, attachLeft),
			tok == ")" || tok == "]" || tok == "}":
			b.WriteString(tok)
			noSpaceBefore = false
			continue
		case utf8.RuneCountInString(tok) == 1 && strings.ContainsAny(tok, attachRight),
			tok == "[" || tok == "{":
			if !noSpaceBefore {
				b.WriteString(" ")
			}
			b.WriteString(tok)
			noSpaceBefore = true
			continue
		case tok == `"`:
			if quoteOpen {
				b.WriteString(`"`)
				noSpaceBefore = false
			} else {
				if !noSpaceBefore {
					b.WriteString(" ")
				}
				b.WriteString(`"`)
				noSpaceBefore = true
			}
			quoteOpen = !quoteOpen
			continue
		case d.lang == "en" && i > 0 && strings.HasPrefix(tok, "'"):
			b.WriteString(tok)
			noSpaceBefore = false
			continue
		case (d.lang == "fr" || d.lang == "it" || d.lang == "ca") && strings.HasSuffix(tok, "'"):
			if !noSpaceBefore {
				b.WriteString(" ")
			}
			b.WriteString(tok)
			noSpaceBefore = true
			continue
		}
		if !noSpaceBefore {
			b.WriteString(" ")
		}
		b.WriteString(tok)
		noSpaceBefore = false
	}
	return b.String()
}

// DetokenizeString splits a space-joined token line and detokenizes it.
func (d *Detokenizer) DetokenizeString(line string) string {
	return d.Detokenize(strings.Fields(line))
}
