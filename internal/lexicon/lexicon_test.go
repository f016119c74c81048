package lexicon

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hurttlocker/craving/internal/catalog"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"I want pizza", []string{"I", "want", "pizza"}},
		{"I don't want pasta.", []string{"I", "do", "n't", "want", "pasta", "."}},
		{"can't stand it", []string{"ca", "n't", "stand", "it"}},
		{"I’m sick of sushi", []string{"I", "’m", "sick", "of", "sushi"}},
		{"something tomato-based, please!", []string{"something", "tomato-based", ",", "please", "!"}},
		{"  dont  ", []string{"dont"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := texts(Tokenize(tt.in))
		if diff := cmp.Diff(tt.want, got); diff != "" && !(len(tt.want) == 0 && len(got) == 0) {
			t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestTokenizeOffsets(t *testing.T) {
	s := "I don’t want chips"
	for _, tok := range Tokenize(s) {
		if s[tok.Start:tok.End] != tok.Text {
			t.Errorf("token %q has offsets [%d,%d) covering %q", tok.Text, tok.Start, tok.End, s[tok.Start:tok.End])
		}
	}
	toks := Tokenize(s)
	if toks[2].Norm != "n't" {
		t.Errorf("curly contraction should normalize to n't, got %q", toks[2].Norm)
	}
}

func TestNormalize(t *testing.T) {
	pairs := [][2]string{
		{"cookies", "cookie"},
		{"berries", "berry"},
		{"tomatoes", "tomato"},
		{"sandwiches", "sandwich"},
		{"Chips", "chip"},
		{"sweets", "sweet"},
	}
	for _, p := range pairs {
		if Normalize(p[0]) != Normalize(p[1]) {
			t.Errorf("Normalize(%q)=%q, Normalize(%q)=%q; want equal", p[0], Normalize(p[0]), p[1], Normalize(p[1]))
		}
	}
	for _, w := range []string{"hummus", "glass", "is", "n't"} {
		if got := Normalize(w); got != w {
			t.Errorf("Normalize(%q) = %q, want unchanged", w, got)
		}
	}
}

func defaultMatcher(t *testing.T) *Matcher {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	return NewMatcher(c)
}

type hit struct {
	Class Class
	ID    string
}

func hits(ms []Match) []hit {
	out := make([]hit, len(ms))
	for i, m := range ms {
		out[i] = hit{m.Class, m.ID}
	}
	return out
}

func TestMatchLongestSpanWins(t *testing.T) {
	m := defaultMatcher(t)

	_, got := m.MatchText("I'd love a chocolate milkshake right now")
	want := []hit{{ClassFood, "chocolate milkshake"}}
	if diff := cmp.Diff(want, hits(got)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	_, got = m.MatchText("chocolate or a milkshake")
	want = []hit{{ClassFood, "chocolate"}, {ClassFood, "milkshake"}}
	if diff := cmp.Diff(want, hits(got)); diff != "" {
		t.Fatalf("separate mentions mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchClassesAndPlurals(t *testing.T) {
	m := defaultMatcher(t)
	_, got := m.MatchText("really hungry for something sweet, maybe cookie or strawberries for dessert")
	want := []hit{
		{ClassIntensity, "high"},
		{ClassCue, "hungry"},
		{ClassCategory, "sweet"},
		{ClassFood, "cookies"},
		{ClassFood, "berries"},
		{ClassMealType, "dessert"},
	}
	if diff := cmp.Diff(want, hits(got)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchOffsetsPointIntoUtterance(t *testing.T) {
	m := defaultMatcher(t)
	s := "No tomato sauce on my pasta"
	_, got := m.MatchText(s)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	for _, mt := range got {
		if s[mt.Start:mt.End] != mt.Text {
			t.Errorf("match %q offsets cover %q", mt.Text, s[mt.Start:mt.End])
		}
	}
	if got[0].ID != "tomato sauce" || got[1].ID != "pasta" {
		t.Errorf("unexpected ids: %+v", hits(got))
	}
}

func TestMatchTieBreakUsesVocabularyOrder(t *testing.T) {
	c, err := catalog.New([]catalog.FoodEntity{
		{ID: "first", Aliases: []string{"treat"}, Tastes: []string{"sweet"}},
		{ID: "second", Aliases: []string{"treat"}, Tastes: []string{"sweet"}},
	}, catalog.Vocabulary{Cues: []string{"treat"}})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	m := NewMatcher(c)
	for i := 0; i < 5; i++ {
		_, got := m.MatchText("a treat")
		if len(got) != 1 || got[0].ID != "first" {
			t.Fatalf("run %d: expected deterministic first-in-catalog match, got %+v", i, got)
		}
	}
}
