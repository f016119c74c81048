package conversation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/extract"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var t0 = time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *fakeClock) {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	clock := &fakeClock{now: t0}
	ex := extract.New(c, extract.WithClock(clock.Now), extract.WithLocation(time.UTC))
	opts = append([]Option{WithClock(clock.Now), WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewMachine(ex, opts...), clock
}

func handle(t *testing.T, m *Machine, user, utterance string) Outcome {
	t.Helper()
	out, err := m.Handle(context.Background(), user, utterance)
	if err != nil {
		t.Fatalf("Handle(%q): %v", utterance, err)
	}
	return out
}

func TestFollowUpFillsMealType(t *testing.T) {
	m, _ := newTestMachine(t)

	first := handle(t, m, "u1", "something sweet")
	if first.Kind != KindFollowUp || first.Missing != extract.MissingMealType {
		t.Fatalf("expected meal-type follow-up, got %+v", first)
	}
	want := "Something sweet sounds good! Is this for a snack or a meal (breakfast/lunch/dinner)?"
	if first.Prompt != want {
		t.Errorf("prompt = %q, want %q", first.Prompt, want)
	}

	second := handle(t, m, "u1", "just a snack")
	if second.Kind != KindComplete || !second.Merged {
		t.Fatalf("expected merged completion, got %+v", second)
	}
	if second.ConversationID != first.ConversationID {
		t.Error("conversation id should carry across turns")
	}
	r := second.Record
	if r.MealType != catalog.MealSnack || !slices.Contains(r.WantedCategories, "sweet") {
		t.Errorf("unexpected merged record %+v", r)
	}
	if _, ok, _ := m.store.Get(context.Background(), "u1"); ok {
		t.Error("pending state should be cleared on completion")
	}
}

func TestMealWordResolvesByClock(t *testing.T) {
	m, _ := newTestMachine(t)
	handle(t, m, "u1", "something warm")
	out := handle(t, m, "u1", "a proper meal")
	if out.Kind != KindComplete || out.Record.MealType != catalog.MealLunch {
		t.Fatalf("expected lunch at 13:00, got %+v", out)
	}
}

func TestRepeatedQuestionIsRephrased(t *testing.T) {
	m, _ := newTestMachine(t)
	handle(t, m, "u1", "something salty")
	out := handle(t, m, "u1", "I'm hungry")
	if out.Kind != KindFollowUp || out.Missing != extract.MissingMealType {
		t.Fatalf("expected another meal-type question, got %+v", out)
	}
	if out.Prompt != promptMealTypeAgain {
		t.Errorf("prompt = %q, want re-ask", out.Prompt)
	}
}

func TestTTLExpiryStartsFreshTurn(t *testing.T) {
	m, clock := newTestMachine(t)

	first := handle(t, m, "u1", "something sweet")
	clock.Advance(601 * time.Second)

	out := handle(t, m, "u1", "lunch")
	if !out.Expired || out.Merged {
		t.Fatalf("expected expired, unmerged turn, got %+v", out)
	}
	if out.ConversationID == first.ConversationID {
		t.Error("expired conversation must not be continued")
	}
	if out.Kind != KindFollowUp || out.Missing != extract.MissingCraving {
		t.Errorf("\"lunch\" alone should ask for a craving, got %+v", out)
	}
	if slices.Contains(out.Record.WantedCategories, "sweet") {
		t.Error("stale wants leaked into the fresh turn")
	}
}

func TestWithinTTLMerges(t *testing.T) {
	m, clock := newTestMachine(t)
	handle(t, m, "u1", "something sweet")
	clock.Advance(599 * time.Second)
	out := handle(t, m, "u1", "lunch")
	if out.Kind != KindComplete || !out.Merged {
		t.Fatalf("expected merge within TTL, got %+v", out)
	}
}

func TestAlternativeFollowUp(t *testing.T) {
	m, _ := newTestMachine(t)

	first := handle(t, m, "u1", "I'm sick of pizza")
	if first.Missing != extract.MissingAlternative {
		t.Fatalf("expected alternative follow-up, got %+v", first)
	}
	if first.Prompt != "Got it, no pizza! What would you like instead?" {
		t.Errorf("unexpected prompt %q", first.Prompt)
	}

	out := handle(t, m, "u1", "pasta")
	if out.Kind != KindComplete {
		t.Fatalf("expected completion, got %+v", out)
	}
	r := out.Record
	if !slices.Equal(r.WantedFoods, []string{"pasta"}) || !slices.Contains(r.ExcludedFoods, "pizza") {
		t.Errorf("unexpected record %+v", r)
	}
	if r.MealType != catalog.MealDinner {
		t.Errorf("meal type should be inferred from pasta, got %q", r.MealType)
	}
	for _, c := range r.WantedCategories {
		if slices.Contains(r.ExcludedCategories, c) {
			t.Errorf("category %q both wanted and excluded", c)
		}
	}
}

func TestExclusionsMergeAdditively(t *testing.T) {
	m, _ := newTestMachine(t)
	handle(t, m, "u1", "something salty, no pretzels")
	out := handle(t, m, "u1", "a snack, but no chips")
	if out.Kind != KindComplete {
		t.Fatalf("expected completion, got %+v", out)
	}
	r := out.Record
	for _, id := range []string{"pretzels", "chips"} {
		if !slices.Contains(r.ExcludedFoods, id) {
			t.Errorf("%s should be excluded, got %v", id, r.ExcludedFoods)
		}
	}
	if !slices.Contains(r.WantedCategories, "salty") {
		t.Errorf("salty should still be wanted, got %v", r.WantedCategories)
	}
}

func TestLaterExplicitMealTypeOverwrites(t *testing.T) {
	m, _ := newTestMachine(t)
	first := handle(t, m, "u1", "I want a snack")
	if first.Missing != extract.MissingCraving || first.Record.MealType != catalog.MealSnack {
		t.Fatalf("expected craving follow-up with snack known, got %+v", first)
	}
	out := handle(t, m, "u1", "pretzels for lunch")
	if out.Kind != KindComplete || out.Record.MealType != catalog.MealLunch {
		t.Fatalf("later explicit meal should win, got %+v", out)
	}
}

func TestOffTopicClearsPending(t *testing.T) {
	m, _ := newTestMachine(t)
	first := handle(t, m, "u1", "something sweet")

	out := handle(t, m, "u1", "what's the capital of France?")
	if out.Kind != KindRejected || out.Prompt != RejectionMessage {
		t.Fatalf("expected rejection, got %+v", out)
	}
	if out.ConversationID != first.ConversationID {
		t.Error("rejection should report the conversation it ended")
	}

	next := handle(t, m, "u1", "snack")
	if next.Merged {
		t.Error("pending state should have been cleared by the rejection")
	}
}

func TestUnsureReplyCompletesWithExclusions(t *testing.T) {
	m, _ := newTestMachine(t)
	handle(t, m, "u1", "no chocolate")
	out := handle(t, m, "u1", "surprise me")
	if out.Kind != KindComplete || !out.Unsure {
		t.Fatalf("expected unsure completion, got %+v", out)
	}
	if !slices.Contains(out.Record.ExcludedFoods, "chocolate") {
		t.Errorf("pending exclusion lost: %+v", out.Record)
	}
	if out.Record.MealType != catalog.MealLunch {
		t.Errorf("meal should follow the 13:00 clock, got %q", out.Record.MealType)
	}
}

func TestUnsureReplyKeepsInferredExclusions(t *testing.T) {
	m, _ := newTestMachine(t)
	first := handle(t, m, "u1", "I don't want pizza")
	if first.Kind != KindFollowUp || first.Missing != extract.MissingAlternative {
		t.Fatalf("expected alternative follow-up, got %+v", first)
	}

	out := handle(t, m, "u1", "surprise me")
	if out.Kind != KindComplete || !out.Unsure {
		t.Fatalf("expected unsure completion, got %+v", out)
	}
	r := out.Record
	if !slices.Contains(r.ExcludedFoods, "pizza") {
		t.Errorf("pizza exclusion lost: %+v", r)
	}
	// pizza's tastes stay excluded so the open pool skips similar food
	for _, c := range []string{"savory", "cheesy", "warm", "tomato-based"} {
		if !slices.Contains(r.ExcludedCategories, c) {
			t.Errorf("category %q should stay excluded: %+v", c, r)
		}
	}
	if r.HasWants() {
		t.Errorf("unsure reply should not add wants: %+v", r)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	m, _ := newTestMachine(t)
	a := handle(t, m, "alice", "something sweet")
	b := handle(t, m, "bob", "something salty")
	if a.ConversationID == b.ConversationID {
		t.Fatal("users must not share conversations")
	}
	out := handle(t, m, "bob", "dinner")
	if !slices.Contains(out.Record.WantedCategories, "salty") || slices.Contains(out.Record.WantedCategories, "sweet") {
		t.Errorf("bob's turn merged the wrong state: %+v", out.Record)
	}
}

func TestConcurrentTurnsShareOnePending(t *testing.T) {
	m, _ := newTestMachine(t)
	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := m.Handle(context.Background(), "u1", "something sweet")
			if err != nil {
				t.Errorf("Handle: %v", err)
				return
			}
			ids[i] = out.ConversationID
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("turn %d started a divergent conversation %q (first %q)", i, ids[i], ids[0])
		}
	}
	if m.locks.size() != 0 {
		t.Errorf("lock table should be empty after all turns, has %d", m.locks.size())
	}
}

func TestCancelledTurnLeavesStateUnchanged(t *testing.T) {
	m, _ := newTestMachine(t)
	first := handle(t, m, "u1", "something sweet")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Handle(ctx, "u1", "a snack"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	p, ok, err := m.store.Get(context.Background(), "u1")
	if err != nil || !ok {
		t.Fatalf("pending state should survive the cancelled turn (ok=%v, err=%v)", ok, err)
	}
	if p.ConversationID != first.ConversationID || p.Missing != extract.MissingMealType || p.Record.MealType != "" {
		t.Errorf("pending state was modified: %+v", p)
	}
}

func TestLockWaitHonoursDeadline(t *testing.T) {
	m, _ := newTestMachine(t)
	unlock, err := m.locks.Lock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Handle(ctx, "u1", "pizza"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while the user is locked, got %v", err)
	}
	if out := handle(t, m, "u2", "pizza"); out.Kind != KindComplete {
		t.Errorf("other users should not be blocked, got %+v", out)
	}
}

func TestSweeperReclaimsExpired(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore(time.Hour)
	m, clock := newTestMachine(t, WithStore(store))
	handle(t, m, "old", "something sweet")
	clock.Advance(10 * time.Minute)
	handle(t, m, "fresh", "something salty")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := m.Sweep(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if store.Len() != 1 {
		t.Fatalf("expected only the fresh entry to remain, have %d", store.Len())
	}
	if _, ok, _ := store.Get(context.Background(), "fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestSweepOnceWithoutSweeperStore(t *testing.T) {
	m, _ := newTestMachine(t, WithStore(plainStore{NewMemoryStore(time.Hour)}))
	n, err := m.SweepOnce(context.Background())
	if err != nil || n != 0 {
		t.Errorf("SweepOnce = (%d, %v), want (0, nil)", n, err)
	}
}

// plainStore hides MemoryStore's DeleteExpired.
type plainStore struct{ s *MemoryStore }

func (p plainStore) Get(ctx context.Context, id string) (Pending, bool, error) { return p.s.Get(ctx, id) }
func (p plainStore) Put(ctx context.Context, pe Pending) error                { return p.s.Put(ctx, pe) }
func (p plainStore) Delete(ctx context.Context, id string) error              { return p.s.Delete(ctx, id) }
