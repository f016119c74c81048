// Package lexicon tokenizes utterances and finds non-overlapping phrase
// matches against the bounded catalog vocabulary.
package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is one word or punctuation mark with its byte offsets in the
// original utterance.
type Token struct {
	Text  string `json:"text"`
	Norm  string `json:"norm"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// IsPunct reports whether the token is a single punctuation mark.
func (t Token) IsPunct() bool {
	r, _ := utf8.DecodeRuneInString(t.Text)
	return len(t.Text) == utf8.RuneLen(r) && !isWordRune(r)
}

// Lower is the lowercased surface text with apostrophes normalized.
func (t Token) Lower() string { return lower(t.Text) }

// contraction suffixes split off the preceding word.
var clitics = []string{"'s", "'m", "'re", "'ll", "'ve", "'d"}

// Tokenize splits s into word and punctuation tokens. Apostrophes and
// hyphens inside a word stay part of it, then English contractions are split
// the way dependency parsers expect: "don't" becomes "do" + "n't" and
// "i'm" becomes "i" + "'m".
func Tokenize(s string) []Token {
	var tokens []Token
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		if !isWordRune(r) {
			tokens = append(tokens, newToken(s, i, i+size))
			i += size
			continue
		}

		start := i
		for i < len(s) {
			r, size = utf8.DecodeRuneInString(s[i:])
			if isWordRune(r) {
				i += size
				continue
			}
			if isJoiner(r) && i+size < len(s) {
				next, _ := utf8.DecodeRuneInString(s[i+size:])
				if isWordRune(next) {
					i += size
					continue
				}
			}
			break
		}
		tokens = append(tokens, splitContraction(s, start, i)...)
	}
	return tokens
}

func splitContraction(s string, start, end int) []Token {
	word := s[start:end]
	apos := strings.LastIndexAny(word, "'’")
	if apos <= 0 {
		return []Token{newToken(s, start, end)}
	}
	low := lower(word)
	if strings.HasSuffix(low, "n't") && apos >= 2 {
		cut := start + apos - 1
		return []Token{newToken(s, start, cut), newToken(s, cut, end)}
	}
	tail := lower(word[apos:])
	for _, c := range clitics {
		if tail == c {
			cut := start + apos
			return []Token{newToken(s, start, cut), newToken(s, cut, end)}
		}
	}
	return []Token{newToken(s, start, end)}
}

func newToken(s string, start, end int) Token {
	text := s[start:end]
	return Token{Text: text, Norm: Normalize(text), Start: start, End: end}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isJoiner(r rune) bool {
	return r == '\'' || r == '’' || r == '-'
}

func lower(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "’", "'"))
}

// Normalize returns the match key for a single word: lowercased, apostrophes
// normalized and lightly singularized so that "cookies" and "cookie" or
// "berries" and "berry" share a key. Keys are only compared with each other
// and are not meant for display.
func Normalize(word string) string {
	w := lower(word)
	if len(w) <= 3 || strings.ContainsAny(w, "'-") || !isASCIILetters(w) {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ies"):
		return w[:len(w)-1]
	case strings.HasSuffix(w, "y") && !isVowel(w[len(w)-2]):
		return w[:len(w)-1] + "ie"
	case strings.HasSuffix(w, "oes"), strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "shes"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "zes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
