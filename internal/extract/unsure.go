package extract

import (
	"regexp"
	"strings"
)

// exclusionLead turns "anything" into an exclusion rather than indifference:
// "anything but pizza" names something unwanted.
var exclusionLead = regexp.MustCompile(`(?i)\b(?:anything|everything|whatever)\s+(?:but|except|besides|other\s+than|apart\s+from|else\s+but)\b`)

// UnsureDetector recognises indifference ("surprise me", "whatever").
type UnsureDetector struct {
	patterns []*regexp.Regexp
}

// NewUnsureDetector compiles word-boundary patterns for phrases.
func NewUnsureDetector(phrases []string) *UnsureDetector {
	d := &UnsureDetector{}
	for _, p := range phrases {
		words := strings.Fields(strings.ToLower(p))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = strings.ReplaceAll(regexp.QuoteMeta(w), "'", "['’]?")
		}
		d.patterns = append(d.patterns, regexp.MustCompile(`(?i)(?:^|[^\pL\pN'’])`+strings.Join(words, `\s+`)+`(?:$|[^\pL\pN'’])`))
	}
	return d
}

// Detect reports whether utterance expresses indifference, and the phrase
// that matched.
func (d *UnsureDetector) Detect(utterance string) (string, bool) {
	text := exclusionLead.ReplaceAllString(utterance, " ")
	for _, re := range d.patterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimFunc(strings.ToLower(m), notWord), true
		}
	}
	return "", false
}

func notWord(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
}
