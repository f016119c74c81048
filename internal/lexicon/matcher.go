package lexicon

import (
	"sort"
	"strings"

	"github.com/hurttlocker/craving/internal/catalog"
)

// Class is the vocabulary class a phrase belongs to.
type Class int

const (
	ClassFood Class = iota
	ClassCategory
	ClassMealType
	ClassIntensity
	ClassCue
)

func (c Class) String() string {
	switch c {
	case ClassFood:
		return "food"
	case ClassCategory:
		return "category"
	case ClassMealType:
		return "meal_type"
	case ClassIntensity:
		return "intensity"
	case ClassCue:
		return "cue"
	default:
		return "unknown"
	}
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Match is one resolved phrase hit. TokenStart/TokenEnd index the token
// slice (end exclusive); Start/End are byte offsets in the utterance.
type Match struct {
	Class      Class  `json:"class"`
	ID         string `json:"id"`
	Text       string `json:"text"`
	TokenStart int    `json:"token_start"`
	TokenEnd   int    `json:"token_end"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Order      int    `json:"-"`
}

// Len is the span length in tokens.
func (m Match) Len() int { return m.TokenEnd - m.TokenStart }

// Overlaps reports whether the two matches share a token.
func (m Match) Overlaps(o Match) bool {
	return m.TokenStart < o.TokenEnd && o.TokenStart < m.TokenEnd
}

type entry struct {
	class Class
	id    string
	keys  []string
	order int
}

// Matcher finds vocabulary phrases in tokenized text. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	byFirst map[string][]int
	entries []entry
}

// NewMatcher compiles the catalog's food names, aliases and vocabulary into
// a matcher. Vocabulary order, which breaks ties between equally long
// candidates, is foods in load order, then categories, meal types, intensity
// markers and cues.
func NewMatcher(c *catalog.Catalog) *Matcher {
	m := &Matcher{byFirst: make(map[string][]int)}
	seen := make(map[string]bool)

	add := func(class Class, id, phrase string) {
		keys := phraseKeys(phrase)
		if len(keys) == 0 {
			return
		}
		sig := class.String() + "\x00" + id + "\x00" + strings.Join(keys, " ")
		if seen[sig] {
			return
		}
		seen[sig] = true
		idx := len(m.entries)
		m.entries = append(m.entries, entry{class: class, id: id, keys: keys, order: idx})
		m.byFirst[keys[0]] = append(m.byFirst[keys[0]], idx)
	}

	for _, f := range c.Foods() {
		for _, p := range f.Phrases() {
			add(ClassFood, f.ID, p)
		}
		add(ClassFood, f.ID, f.ID)
	}
	v := c.Vocabulary()
	for _, k := range v.Categories {
		add(ClassCategory, k.ID, k.ID)
		for _, p := range k.Phrases {
			add(ClassCategory, k.ID, p)
		}
	}
	for _, k := range v.MealTypes {
		add(ClassMealType, k.ID, k.ID)
		for _, p := range k.Phrases {
			add(ClassMealType, k.ID, p)
		}
	}
	for _, k := range v.Intensity {
		for _, p := range k.Phrases {
			add(ClassIntensity, k.ID, p)
		}
	}
	for _, p := range v.Cues {
		add(ClassCue, p, p)
	}
	return m
}

func phraseKeys(phrase string) []string {
	toks := Tokenize(phrase)
	keys := make([]string, 0, len(toks))
	for _, t := range toks {
		keys = append(keys, t.Norm)
	}
	return keys
}

// Match returns the non-overlapping phrase matches in tokens, ordered by
// position. Overlaps are resolved by span length (longest first), then
// vocabulary order, then position.
func (m *Matcher) Match(utterance string, tokens []Token) []Match {
	var cands []Match
	for i, t := range tokens {
		for _, idx := range m.byFirst[t.Norm] {
			e := m.entries[idx]
			end := i + len(e.keys)
			if end > len(tokens) || !keysEqual(e.keys, tokens[i:end]) {
				continue
			}
			cands = append(cands, Match{
				Class:      e.class,
				ID:         e.id,
				Text:       utterance[t.Start:tokens[end-1].End],
				TokenStart: i,
				TokenEnd:   end,
				Start:      t.Start,
				End:        tokens[end-1].End,
				Order:      e.order,
			})
		}
	}

	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.Len() != cb.Len() {
			return ca.Len() > cb.Len()
		}
		if ca.Order != cb.Order {
			return ca.Order < cb.Order
		}
		return ca.TokenStart < cb.TokenStart
	})

	var kept []Match
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if c.Overlaps(k) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].TokenStart < kept[b].TokenStart })
	return kept
}

// MatchText tokenizes utterance and matches it.
func (m *Matcher) MatchText(utterance string) ([]Token, []Match) {
	tokens := Tokenize(utterance)
	return tokens, m.Match(utterance, tokens)
}

func keysEqual(keys []string, tokens []Token) bool {
	for i, k := range keys {
		if tokens[i].Norm != k {
			return false
		}
	}
	return true
}
