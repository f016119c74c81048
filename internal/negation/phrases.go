package negation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// exclusionIdioms are surface phrases that exclude whatever follows them.
var exclusionIdioms = []string{
	"don't want", "dont want", "do not want",
	"don't like", "dont like", "do not like",
	"don't feel like", "dont feel like", "do not feel like",
	"not in the mood for", "not craving",
	"can't stand", "cant stand", "cannot stand",
	"sick of", "tired of", "allergic to", "intolerant to",
	"stay away from", "keep away from",
	"anything but", "everything but", "anything except", "anything other than",
	"but not", "no more", "instead of", "rather than",
}

// idiomReach caps an idiom's scope in bytes after the phrase ends.
const idiomReach = 50

var idiomBreaker = regexp.MustCompile(`(?i)[.,!?;]|\sbut\s|\sand\s+i\b|\showever\s`)

type exclusionPhrase struct {
	text string
	re   *regexp.Regexp
}

func compileExclusionPhrases() []exclusionPhrase {
	out := make([]exclusionPhrase, 0, len(exclusionIdioms))
	for _, p := range exclusionIdioms {
		words := strings.Fields(p)
		for i, w := range words {
			words[i] = strings.ReplaceAll(regexp.QuoteMeta(w), "'", "['’]")
		}
		re := regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
		out = append(out, exclusionPhrase{text: p, re: re})
	}
	return out
}

// phraseSpans returns, for every idiom occurrence, the text from the end of
// the idiom up to the first clause breaker or idiomReach bytes.
func (r *Resolver) phraseSpans(utterance string) []Span {
	var spans []Span
	for _, p := range r.phrases {
		for _, loc := range p.re.FindAllStringIndex(utterance, -1) {
			start := loc[1]
			limit := start + idiomReach
			if limit >= len(utterance) {
				limit = len(utterance)
			} else {
				for limit > start && !utf8.RuneStart(utterance[limit]) {
					limit--
				}
			}
			window := utterance[start:limit]
			if b := idiomBreaker.FindStringIndex(window); b != nil {
				window = window[:b[0]]
			}
			if window == "" {
				continue
			}
			spans = append(spans, Span{
				Start:   start,
				End:     start + len(window),
				Source:  SourcePhrase,
				Trigger: p.text,
			})
		}
	}
	return spans
}
