package negation

import (
	"context"
	"strings"

	"github.com/hurttlocker/craving/internal/lexicon"
)

// ShallowParser is a rule-based dependency parser for short food requests.
// It splits the utterance into clauses, roots each clause at its main verb
// and attaches the remaining tokens with a handful of attachment rules. It is
// far from a general parser but produces trees whose negation scopes agree
// with a statistical parser on the utterances the catalog vocabulary covers.
type ShallowParser struct{}

// NewShallowParser returns the built-in parser.
func NewShallowParser() *ShallowParser { return &ShallowParser{} }

var closedClass = map[string]string{
	"i": "PRON", "me": "PRON", "you": "PRON", "he": "PRON", "she": "PRON",
	"it": "PRON", "we": "PRON", "they": "PRON", "us": "PRON", "them": "PRON",
	"him": "PRON", "her": "PRON", "myself": "PRON", "what": "PRON",
	"something": "PRON", "anything": "PRON", "nothing": "PRON",
	"everything": "PRON", "none": "PRON", "someone": "PRON",

	"do": "AUX", "does": "AUX", "did": "AUX", "am": "AUX", "is": "AUX",
	"are": "AUX", "was": "AUX", "were": "AUX", "be": "AUX", "been": "AUX",
	"'m": "AUX", "'re": "AUX", "'s": "AUX", "'ve": "AUX", "'d": "AUX",
	"'ll": "AUX", "can": "AUX", "ca": "AUX", "could": "AUX", "would": "AUX",
	"will": "AUX", "wo": "AUX", "should": "AUX", "shall": "AUX", "may": "AUX",
	"might": "AUX", "must": "AUX", "cannot": "AUX",
	"dont": "AUX", "cant": "AUX", "wont": "AUX", "didnt": "AUX", "doesnt": "AUX",

	"not": "PART", "n't": "PART", "never": "PART", "to": "PART",

	"a": "DET", "an": "DET", "the": "DET", "some": "DET", "any": "DET",
	"no": "DET", "this": "DET", "that": "DET", "these": "DET", "those": "DET",
	"my": "DET", "your": "DET", "every": "DET", "each": "DET", "neither": "DET",

	"with": "ADP", "without": "ADP", "for": "ADP", "of": "ADP", "in": "ADP",
	"on": "ADP", "at": "ADP", "from": "ADP", "except": "ADP", "about": "ADP",
	"than": "ADP", "into": "ADP", "after": "ADP", "before": "ADP",
	"besides": "ADP", "instead": "ADP",

	"and": "CCONJ", "or": "CCONJ", "nor": "CCONJ", "but": "CCONJ",
	"however": "ADV", "although": "SCONJ",

	"maybe": "ADV", "perhaps": "ADV", "possibly": "ADV", "really": "ADV",
	"very": "ADV", "so": "ADV", "just": "ADV", "too": "ADV", "also": "ADV",
	"right": "ADV", "now": "ADV", "again": "ADV", "more": "ADV",
	"much": "ADV", "how": "ADV", "kinda": "ADV", "please": "INTJ",
	"hi": "INTJ", "hey": "INTJ", "hello": "INTJ", "thanks": "INTJ",
	"yes": "INTJ", "ok": "INTJ",
}

var verbLemmas = map[string]bool{
	"want": true, "like": true, "love": true, "crave": true, "need": true,
	"have": true, "eat": true, "get": true, "feel": true, "hate": true,
	"dislike": true, "avoid": true, "skip": true, "exclude": true,
	"reject": true, "detest": true, "loathe": true, "prefer": true,
	"fancy": true, "give": true, "make": true, "try": true, "stand": true,
	"order": true, "drink": true, "grab": true, "think": true, "know": true,
	"choose": true, "pick": true, "decide": true, "mind": true, "care": true,
	"enjoy": true, "wish": true, "go": true, "stay": true, "keep": true,
	"suggest": true, "recommend": true, "surprise": true, "munch": true,
}

// Parse implements Parser.
func (sp *ShallowParser) Parse(ctx context.Context, utterance string) (*Parse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lex := lexicon.Tokenize(utterance)
	toks := make([]Token, len(lex))
	for i, lt := range lex {
		low := normalizeWord(lt.Text)
		pos, lemma := tag(low, lt.IsPunct())
		toks[i] = Token{Index: i, Text: lt.Text, Lemma: lemma, POS: pos, Start: lt.Start, End: lt.End, Head: i}
	}

	prevRoot := -1
	for _, c := range clauses(toks) {
		root := clauseRoot(toks, c)
		if root < 0 {
			// clause of connectives only; hang it off the previous root
			if c.lead >= 0 {
				attach(toks, c.lead, prevRoot, "cc")
			}
			for i := c.start; i < c.end; i++ {
				attach(toks, i, prevRoot, "dep")
			}
			continue
		}
		if prevRoot < 0 {
			toks[root].Dep = "ROOT"
			toks[root].Head = root
		} else {
			attach(toks, root, prevRoot, "conj")
		}
		if c.lead >= 0 && prevRoot >= 0 {
			attach(toks, c.lead, prevRoot, "cc")
		}
		attachClause(toks, c, root)
		prevRoot = root
	}
	if prevRoot < 0 {
		for i := range toks {
			toks[i].Dep = "dep"
		}
	}
	return &Parse{Tokens: toks}, nil
}

func attach(toks []Token, i, head int, dep string) {
	if head < 0 {
		head = i
	}
	toks[i].Head = head
	toks[i].Dep = dep
}

func tag(low string, punct bool) (pos, lemma string) {
	if punct {
		return "PUNCT", low
	}
	if low == "n't" {
		return "PART", "not"
	}
	if p, ok := closedClass[low]; ok {
		return p, low
	}
	if l := verbLemma(low); l != "" {
		return "VERB", l
	}
	if low != "" && low[0] >= '0' && low[0] <= '9' {
		return "NUM", low
	}
	return "NOUN", low
}

func verbLemma(w string) string {
	if verbLemmas[w] {
		return w
	}
	cands := []string{
		strings.TrimSuffix(w, "s"),
		strings.TrimSuffix(w, "es"),
		strings.TrimSuffix(w, "ing"),
		strings.TrimSuffix(w, "ing") + "e",
		strings.TrimSuffix(w, "ed"),
		strings.TrimSuffix(w, "d"),
	}
	if base := strings.TrimSuffix(w, "ing"); len(base) > 2 && base != w && base[len(base)-1] == base[len(base)-2] {
		cands = append(cands, base[:len(base)-1])
	}
	if base := strings.TrimSuffix(w, "ies"); base != w {
		cands = append(cands, base+"y")
	}
	for _, c := range cands {
		if c != w && verbLemmas[c] {
			return c
		}
	}
	return ""
}

type clause struct {
	start, end int // content tokens [start,end)
	lead       int // clause-introducing connective before start, or -1
}

// clauses splits at clause punctuation and clause-introducing connectives.
// Trailing punctuation stays in the clause it closes.
func clauses(toks []Token) []clause {
	var out []clause
	cur := clause{start: 0, lead: -1}
	for i := 0; i < len(toks); i++ {
		low := normalizeWord(toks[i].Text)
		switch {
		case breakPunct[low]:
			cur.end = i + 1
			out = append(out, cur)
			cur = clause{start: i + 1, lead: -1}
		case breakWords[low] || (low == "and" && introducesClause(toks, i)):
			cur.end = i
			if cur.end > cur.start || cur.lead >= 0 {
				out = append(out, cur)
			}
			cur = clause{start: i + 1, lead: i}
		}
	}
	cur.end = len(toks)
	if cur.end > cur.start || cur.lead >= 0 {
		out = append(out, cur)
	}
	return out
}

func introducesClause(toks []Token, i int) bool {
	if i+1 < len(toks) && clausePOS(toks[i+1].POS) {
		return true
	}
	return i > 0 && isVerbal(toks[i-1].POS)
}

func clauseRoot(toks []Token, c clause) int {
	first := map[string]int{}
	for i := c.start; i < c.end; i++ {
		if _, ok := first[toks[i].POS]; !ok {
			first[toks[i].POS] = i
		}
	}
	for _, pos := range []string{"VERB", "AUX", "NOUN", "PRON", "NUM", "ADV", "INTJ"} {
		if i, ok := first[pos]; ok {
			return i
		}
	}
	for i := c.start; i < c.end; i++ {
		if toks[i].POS != "PUNCT" {
			return i
		}
	}
	return -1
}

func attachClause(toks []Token, c clause, root int) {
	prep := -1
	for i := c.start; i < c.end; i++ {
		if i == root {
			continue
		}
		t := toks[i]
		low := normalizeWord(t.Text)
		switch t.POS {
		case "PUNCT":
			attach(toks, i, root, "punct")
		case "PART":
			if low == "to" {
				attach(toks, i, root, "mark")
			} else {
				attach(toks, i, root, "neg")
			}
		case "AUX":
			attach(toks, i, root, "aux")
		case "ADP":
			attach(toks, i, root, "prep")
			prep = i
		case "CCONJ":
			if i > c.start {
				attach(toks, i, i-1, "cc")
			} else {
				attach(toks, i, root, "cc")
			}
		case "DET":
			head := root
			if i+1 < c.end && i+1 != root {
				head = i + 1
			}
			attach(toks, i, head, "det")
		case "ADV", "INTJ", "SCONJ":
			attach(toks, i, root, "advmod")
		case "VERB":
			attach(toks, i, root, "xcomp")
			prep = -1
		default:
			switch {
			case prep >= 0 && i > prep:
				attach(toks, i, prep, "pobj")
			case i < root && t.POS == "PRON":
				attach(toks, i, root, "nsubj")
			case i < root:
				attach(toks, i, root, "dep")
			default:
				attach(toks, i, root, "dobj")
			}
		}
	}
}
