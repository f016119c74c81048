package negation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/lexicon"
)

// Source tells which pass produced a span.
type Source string

const (
	SourceDependency Source = "dependency"
	SourcePhrase     Source = "phrase"
)

// Span is a byte range of the utterance inside a negation scope.
type Span struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Source  Source `json:"source"`
	Trigger string `json:"trigger"`
}

// Flagged is a lexical match with its negation verdict.
type Flagged struct {
	lexicon.Match
	Negated bool   `json:"negated"`
	Source  Source `json:"source,omitempty"`
}

var negationTokens = map[string]bool{
	"not": true, "no": true, "never": true, "n't": true, "dont": true,
	"cant": true, "wont": true, "didnt": true, "doesnt": true,
	"without": true, "except": true, "nothing": true, "none": true,
	"neither": true, "nor": true,
}

var negationLemmas = map[string]bool{
	"hate": true, "dislike": true, "avoid": true, "skip": true,
	"exclude": true, "reject": true, "detest": true, "loathe": true,
}

var positiveSignals = map[string]bool{
	"maybe": true, "perhaps": true, "possibly": true, "or": true,
}

// positiveReach is how many tokens after a positive signal lose their
// dependency negation.
const positiveReach = 3

var breakPunct = map[string]bool{",": true, ".": true, ";": true, "!": true, "?": true}

var breakWords = map[string]bool{"but": true, "however": true, "although": true}

// Resolver flags matches that fall inside a negation scope. It is safe for
// concurrent use if its Parser is.
type Resolver struct {
	parser  Parser
	phrases []exclusionPhrase
	logger  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParser replaces the dependency parser. A nil parser disables the
// dependency pass so only exclusion idioms are recognised.
func WithParser(p Parser) Option {
	return func(r *Resolver) { r.parser = p }
}

// WithLogger sets the logger used to report degraded operation.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver builds a resolver backed by the ShallowParser unless another
// parser is supplied.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		parser:  NewShallowParser(),
		phrases: compileExclusionPhrases(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Spans returns the negated byte ranges found by the dependency pass and by
// the idiom pass. A missing or failing parser yields no dependency spans.
func (r *Resolver) Spans(ctx context.Context, utterance string) (dependency, phrase []Span) {
	phrase = r.phraseSpans(utterance)
	if r.parser == nil {
		return nil, phrase
	}
	p, err := r.parser.Parse(ctx, utterance)
	if err != nil {
		r.logger.Warn("dependency parse failed, falling back to exclusion idioms", zap.Error(err))
		return nil, phrase
	}
	if p == nil {
		return nil, phrase
	}
	return dependencySpans(p), phrase
}

// Resolve flags each match. A match is negated when it overlaps a
// dependency span or starts inside an idiom's scope.
func (r *Resolver) Resolve(ctx context.Context, utterance string, matches []lexicon.Match) []Flagged {
	dep, phr := r.Spans(ctx, utterance)
	out := make([]Flagged, 0, len(matches))
	for _, m := range matches {
		f := Flagged{Match: m}
		for _, s := range dep {
			if m.Start < s.End && s.Start < m.End {
				f.Negated, f.Source = true, SourceDependency
				break
			}
		}
		if !f.Negated {
			for _, s := range phr {
				if m.Start >= s.Start && m.Start < s.End {
					f.Negated, f.Source = true, SourcePhrase
					break
				}
			}
		}
		out = append(out, f)
	}
	return out
}

func dependencySpans(p *Parse) []Span {
	toks := p.Tokens
	n := len(toks)
	if n == 0 {
		return nil
	}
	kids := p.children()
	negated := make([]int, n) // marker index + 1, 0 when not negated

	nextBreaker := func(i int) int {
		for j := i + 1; j < n; j++ {
			if isBreaker(toks, j) {
				return j
			}
		}
		return n
	}
	mark := func(marker int, scope []int) {
		limit := nextBreaker(marker)
		for _, j := range scope {
			if j > marker && j < limit && negated[j] == 0 {
				negated[j] = marker + 1
			}
		}
	}

	for i, t := range toks {
		low := normalizeWord(t.Text)
		lemma := normalizeWord(t.Lemma)
		if lemma == "" {
			lemma = low
		}
		switch {
		case negationTokens[low] || t.Dep == "neg":
			scope := subtree(kids, i)
			if !t.IsRoot() && t.Head < n {
				scope = append(scope, subtree(kids, t.Head)...)
			}
			mark(i, scope)
		case negationLemmas[lemma]:
			mark(i, subtree(kids, i))
		}
	}

	for i := 0; i < n; i++ {
		low := normalizeWord(toks[i].Text)
		from := -1
		switch {
		case positiveSignals[low]:
			from = i
		case low == "how" && i+1 < n && normalizeWord(toks[i+1].Text) == "about":
			from = i + 1
		}
		if from < 0 {
			continue
		}
		for j := from; j <= from+positiveReach && j < n; j++ {
			negated[j] = 0
		}
	}

	var spans []Span
	for i := 0; i < n; i++ {
		if negated[i] == 0 {
			continue
		}
		j := i
		for j+1 < n && negated[j+1] != 0 {
			j++
		}
		spans = append(spans, Span{
			Start:   toks[i].Start,
			End:     toks[j].End,
			Source:  SourceDependency,
			Trigger: toks[negated[i]-1].Text,
		})
		i = j
	}
	return spans
}

// isBreaker reports whether token j ends a negation scope.
func isBreaker(toks []Token, j int) bool {
	low := normalizeWord(toks[j].Text)
	if breakPunct[low] || breakWords[low] {
		return true
	}
	if low != "and" {
		return false
	}
	if j+1 < len(toks) && clausePOS(toks[j+1].POS) {
		return true
	}
	h := toks[j].Head
	return !toks[j].IsRoot() && h < len(toks) && isVerbal(toks[h].POS)
}

func clausePOS(pos string) bool { return pos == "PRON" || isVerbal(pos) }

func isVerbal(pos string) bool { return pos == "VERB" || pos == "AUX" }

func normalizeWord(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "’", "'"))
}
