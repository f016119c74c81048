package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/conversation"
	"github.com/hurttlocker/craving/internal/extract"
	"github.com/hurttlocker/craving/internal/recommend"
	"github.com/hurttlocker/craving/internal/scoring"
	"github.com/hurttlocker/craving/internal/store"
)

var t0 = time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

func newAssistant(t *testing.T, s recommend.Scorer, opts ...Option) *Assistant {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	now := func() time.Time { return t0 }
	ex := extract.New(c, extract.WithClock(now), extract.WithLocation(time.UTC))
	m := conversation.NewMachine(ex, conversation.WithClock(now))
	e, err := recommend.NewEngine(c, s, recommend.WithClock(now, time.UTC))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(c, m, e, opts...)
}

func TestPastaWithoutTomatoSauce(t *testing.T) {
	a := newAssistant(t, scoring.RiskScorer{})
	reply, err := a.Respond(context.Background(), "I want pasta but not with tomato sauce",
		recommend.UserContext{GlucoseLevel: 100, GlucoseAverage: 100}, "u1")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	in := reply.Interpretation
	if !in.Complete() {
		t.Fatalf("expected complete interpretation, got %+v", in)
	}
	if len(in.Record.WantedFoods) != 1 || in.Record.WantedFoods[0] != "pasta" {
		t.Fatalf("wanted foods = %v", in.Record.WantedFoods)
	}
	if len(in.Record.ExcludedFoods) != 1 || in.Record.ExcludedFoods[0] != "tomato sauce" {
		t.Fatalf("excluded foods = %v", in.Record.ExcludedFoods)
	}
	if in.Record.MealType != catalog.MealDinner {
		t.Fatalf("meal type = %q, want dinner", in.Record.MealType)
	}

	rec := reply.Recommendation
	if rec == nil {
		t.Fatal("expected a recommendation")
	}
	if rec.Status != recommend.StatusRedirected || rec.Primary != "pasta" || rec.Alternate != "whole wheat pasta" {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
	want := "Based on your levels, here's a great choice: whole wheat pasta instead of pasta."
	if reply.Text != want {
		t.Fatalf("text = %q, want %q", reply.Text, want)
	}

	// Same input, same answer.
	again, err := a.Respond(context.Background(), "I want pasta but not with tomato sauce",
		recommend.UserContext{GlucoseLevel: 100, GlucoseAverage: 100}, "u2")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if again.Recommendation.Alternate != rec.Alternate || again.Recommendation.Score != rec.Score {
		t.Fatalf("non-deterministic recommendation: %+v vs %+v", again.Recommendation, rec)
	}
}

func TestSurpriseMe(t *testing.T) {
	a := newAssistant(t, scoring.RiskScorer{})
	reply, err := a.Respond(context.Background(), "surprise me", recommend.UserContext{GlucoseLevel: 110}, "u1")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	in := reply.Interpretation
	if !in.Complete() || !in.Unsure {
		t.Fatalf("expected unsure short-circuit, got %+v", in)
	}
	if in.Record.HasWants() || in.Record.HasExclusions() {
		t.Fatalf("expected unconstrained record, got %+v", in.Record)
	}
	if in.Record.MealType != catalog.MealLunch {
		t.Fatalf("meal type = %q, want lunch at 13:00", in.Record.MealType)
	}
	rec := reply.Recommendation
	if rec == nil || rec.Status != recommend.StatusApproved || rec.Primary != "salad" {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
	if want := "Based on your levels, here's a great choice: salad (High Safety)."; reply.Text != want {
		t.Fatalf("text = %q, want %q", reply.Text, want)
	}
}

func TestSurpriseMeAfterExclusion(t *testing.T) {
	a := newAssistant(t, scoring.RiskScorer{})
	ctx := context.Background()
	uc := recommend.UserContext{GlucoseLevel: 110}

	if _, err := a.Respond(ctx, "I don't want pizza", uc, "u1"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	reply, err := a.Respond(ctx, "surprise me", uc, "u1")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	rec := reply.Recommendation
	if rec == nil || rec.Status != recommend.StatusApproved || rec.Primary != "salad" {
		t.Fatalf("unexpected recommendation %+v", rec)
	}
	f, _ := a.Catalog().Food(rec.Primary)
	if f.HasCategory("savory") || f.HasCategory("cheesy") {
		t.Errorf("%s shares a taste with the excluded pizza", f.ID)
	}
}

func TestFollowUpThenRecommend(t *testing.T) {
	a := newAssistant(t, scoring.RiskScorer{})
	ctx := context.Background()
	uc := recommend.UserContext{GlucoseLevel: 95}

	first, err := a.Respond(ctx, "something sweet", uc, "u1")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if first.Recommendation != nil || first.Interpretation.Kind != conversation.KindFollowUp {
		t.Fatalf("expected follow-up only, got %+v", first)
	}
	if first.Text != first.Interpretation.Prompt || first.Text == "" {
		t.Fatalf("follow-up text = %q", first.Text)
	}

	second, err := a.Respond(ctx, "a snack", uc, "u1")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if second.Recommendation == nil || second.Recommendation.Status != recommend.StatusApproved {
		t.Fatalf("expected approval after follow-up, got %+v", second)
	}
	if second.Interpretation.ConversationID != first.Interpretation.ConversationID {
		t.Fatal("follow-up should continue the same conversation")
	}
	c := a.Catalog()
	f, _ := c.Food(second.Recommendation.Primary)
	if !f.HasTaste("sweet") {
		t.Fatalf("recommended %s is not sweet", f.ID)
	}
}

func TestOffTopic(t *testing.T) {
	a := newAssistant(t, scoring.RiskScorer{})
	reply, err := a.Respond(context.Background(), "what's the weather like", recommend.UserContext{}, "u1")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Recommendation == nil || reply.Recommendation.Status != recommend.StatusRejectedOffTopic {
		t.Fatalf("expected off-topic rejection, got %+v", reply.Recommendation)
	}
	if reply.Text != conversation.RejectionMessage {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestScorerOutageSurfaces(t *testing.T) {
	a := newAssistant(t, recommend.ScorerFunc(func(context.Context, recommend.Features) (float64, error) {
		return 0, errors.New("connection refused")
	}))
	_, err := a.Respond(context.Background(), "I want pizza for dinner", recommend.UserContext{GlucoseLevel: 100}, "u1")
	if !errors.Is(err, recommend.ErrScorerUnavailable) {
		t.Fatalf("expected ErrScorerUnavailable, got %v", err)
	}
}

func TestJournal(t *testing.T) {
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	a := newAssistant(t, scoring.RiskScorer{}, WithJournal(s))
	ctx := context.Background()
	if _, err := a.Interpret(ctx, "something salty", recommend.UserContext{}, "u1"); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if _, err := a.Interpret(ctx, "dinner", recommend.UserContext{}, "u1"); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	events, err := s.ListEvents(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(events))
	}
	if events[0].Kind != string(conversation.KindComplete) || events[1].Kind != string(conversation.KindFollowUp) {
		t.Fatalf("unexpected kinds %q, %q", events[0].Kind, events[1].Kind)
	}
	if events[0].ConversationID == "" || events[0].ConversationID != events[1].ConversationID {
		t.Fatal("journal entries should share the conversation id")
	}
}

func TestRender(t *testing.T) {
	c, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		rec  recommend.Recommendation
		want string
	}{
		{
			name: "approved",
			rec:  recommend.Recommendation{Status: recommend.StatusApproved, Primary: "apple", SafetyTag: recommend.SafetyMedium},
			want: "Based on your levels, here's a great choice: apple (Medium Safety).",
		},
		{
			name: "no alternate",
			rec:  recommend.Recommendation{Status: recommend.StatusRedirected, Primary: "donut"},
			want: "Donut " + replyNoAlt,
		},
		{
			name: "mixed verdicts",
			rec: recommend.Recommendation{
				Status:  recommend.StatusRedirected,
				Primary: "frozen yogurt",
				Verdicts: []recommend.Verdict{
					{Food: "ice cream", Alternate: "protein smoothie"},
					{Food: "frozen yogurt", Approved: true},
				},
			},
			want: "Based on your levels, here's a great choice: frozen yogurt, and protein smoothie instead of ice cream.",
		},
		{
			name: "clarify",
			rec:  recommend.Recommendation{Status: recommend.StatusClarificationNeeded},
			want: replyClarify,
		},
		{
			name: "off topic",
			rec:  recommend.OffTopic(),
			want: conversation.RejectionMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(c, tt.rec); got != tt.want {
				t.Fatalf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}
