// Package negation decides which matched spans of an utterance fall inside
// a negation scope. It combines a dependency-scoped pass over a pluggable
// Parser with a surface pass over a fixed table of exclusion idioms.
package negation

import (
	"context"
	"slices"
)

// Token is one node of a dependency parse. Head is the index of the
// governing token; a root points at itself (or is negative).
type Token struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Lemma string `json:"lemma"`
	POS   string `json:"pos"`
	Dep   string `json:"dep"`
	Head  int    `json:"head"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// IsRoot reports whether the token has no governor.
func (t Token) IsRoot() bool { return t.Head < 0 || t.Head == t.Index }

// Parse is a dependency parse of one utterance.
type Parse struct {
	Tokens []Token `json:"tokens"`
}

// Parser produces a dependency parse. Implementations may be backed by an
// external NLP service; ShallowParser is the built-in rule-based one.
type Parser interface {
	Parse(ctx context.Context, utterance string) (*Parse, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, utterance string) (*Parse, error)

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, utterance string) (*Parse, error) {
	return f(ctx, utterance)
}

func (p *Parse) children() [][]int {
	kids := make([][]int, len(p.Tokens))
	for i, t := range p.Tokens {
		if t.IsRoot() || t.Head >= len(p.Tokens) {
			continue
		}
		kids[t.Head] = append(kids[t.Head], i)
	}
	return kids
}

// subtree returns i and every token it transitively governs.
func subtree(kids [][]int, i int) []int {
	seen := map[int]bool{i: true}
	stack := []int{i}
	out := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range kids[n] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			stack = append(stack, c)
		}
	}
	slices.Sort(out)
	return out
}
