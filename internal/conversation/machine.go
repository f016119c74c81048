// Package conversation holds per-user pending craving extractions across
// turns, asks for missing fields and merges follow-up answers.
//
// Each user moves through NoPending -> PendingFollowUp -> Complete, Expired
// or Rejected. Turns for the same user are serialized; a merge is computed
// in full before it is written so a cancelled turn leaves the stored state
// untouched.
package conversation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/extract"
)

// DefaultTTL is how long a pending extraction waits for its follow-up.
const DefaultTTL = 600 * time.Second

// Kind classifies the result of a turn.
type Kind string

const (
	KindComplete Kind = "complete"
	KindFollowUp Kind = "follow_up"
	KindRejected Kind = "rejected"
)

// Outcome is the result of one turn.
type Outcome struct {
	Kind           Kind            `json:"kind"`
	Record         extract.Record  `json:"record"`
	Missing        extract.Missing `json:"missing,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	ConversationID string          `json:"conversation_id"`
	// Merged is set when the turn answered an earlier follow-up.
	Merged bool `json:"merged,omitempty"`
	// Expired is set when a stale pending extraction was discarded.
	Expired bool `json:"expired,omitempty"`
	Unsure  bool `json:"unsure,omitempty"`
}

// Machine is the conversation state machine.
type Machine struct {
	ex     *extract.Extractor
	store  Store
	ttl    time.Duration
	now    func() time.Time
	locks  *keyedMutex
	logger *zap.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithStore sets the pending store. The default is a MemoryStore.
func WithStore(s Store) Option {
	return func(m *Machine) { m.store = s }
}

// WithTTL sets how long a pending extraction stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock sets the clock used for TTL decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine builds a Machine around ex.
func NewMachine(ex *extract.Extractor, opts ...Option) *Machine {
	m := &Machine{
		ex:     ex,
		ttl:    DefaultTTL,
		now:    time.Now,
		locks:  newKeyedMutex(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore(m.ttl + time.Minute)
	}
	return m
}

// TTL returns the configured pending lifetime.
func (m *Machine) TTL() time.Duration { return m.ttl }

// Handle processes one utterance from userID.
func (m *Machine) Handle(ctx context.Context, userID, utterance string) (Outcome, error) {
	unlock, err := m.locks.Lock(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("waiting for conversation lock: %w", err)
	}
	defer unlock()

	now := m.now()
	pending, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading pending extraction: %w", err)
	}
	log := m.logger.With(zap.String("user", userID))

	expired := false
	if ok && pending.Expired(now, m.ttl) {
		log.Debug("pending extraction expired",
			zap.String("conversation", pending.ConversationID),
			zap.Duration("age", now.Sub(pending.CreatedAt)))
		expired, ok = true, false
	}

	res := m.ex.Extract(ctx, utterance)

	if res.Status == extract.StatusOffTopic {
		if ok || expired {
			if err := m.commitDelete(ctx, userID); err != nil {
				return Outcome{}, err
			}
		}
		log.Info("off-topic utterance rejected")
		out := Outcome{Kind: KindRejected, Record: res.Record, Prompt: RejectionMessage, Expired: expired}
		if ok {
			out.ConversationID = pending.ConversationID
		}
		return out, nil
	}

	if !ok {
		return m.firstTurn(ctx, log, userID, res, now, expired)
	}

	rec, missing := m.merge(pending, res, utterance)
	log = log.With(zap.String("conversation", pending.ConversationID))

	if missing == extract.MissingNone {
		if err := m.commitDelete(ctx, userID); err != nil {
			return Outcome{}, err
		}
		log.Info("follow-up completed craving")
		return Outcome{
			Kind:           KindComplete,
			Record:         m.ex.Finalize(rec),
			ConversationID: pending.ConversationID,
			Merged:         true,
			Unsure:         res.Signals.Unsure,
		}, nil
	}

	next := Pending{
		UserID:         userID,
		ConversationID: pending.ConversationID,
		Record:         rec,
		Missing:        missing,
		CreatedAt:      now,
	}
	if err := m.commitPut(ctx, next); err != nil {
		return Outcome{}, err
	}
	log.Info("follow-up still incomplete", zap.String("missing", string(missing)))
	return Outcome{
		Kind:           KindFollowUp,
		Record:         rec,
		Missing:        missing,
		Prompt:         followUpPrompt(m.ex.Catalog(), rec, missing, missing == pending.Missing),
		ConversationID: pending.ConversationID,
		Merged:         true,
	}, nil
}

func (m *Machine) firstTurn(ctx context.Context, log *zap.Logger, userID string, res extract.Result, now time.Time, expired bool) (Outcome, error) {
	id := uuid.NewString()
	log = log.With(zap.String("conversation", id))

	if res.Status == extract.StatusComplete {
		if expired {
			if err := m.commitDelete(ctx, userID); err != nil {
				return Outcome{}, err
			}
		}
		log.Debug("craving complete on first turn")
		return Outcome{
			Kind:           KindComplete,
			Record:         res.Record,
			ConversationID: id,
			Expired:        expired,
			Unsure:         res.Signals.Unsure,
		}, nil
	}

	p := Pending{
		UserID:         userID,
		ConversationID: id,
		Record:         res.Record,
		Missing:        res.Missing,
		CreatedAt:      now,
	}
	if err := m.commitPut(ctx, p); err != nil {
		return Outcome{}, err
	}
	log.Info("asking follow-up", zap.String("missing", string(res.Missing)))
	return Outcome{
		Kind:           KindFollowUp,
		Record:         res.Record,
		Missing:        res.Missing,
		Prompt:         followUpPrompt(m.ex.Catalog(), res.Record, res.Missing, false),
		ConversationID: id,
		Expired:        expired,
	}, nil
}

// merge folds a follow-up into the pending record. Only the field that was
// missing is filled; exclusions are always added, and an explicit meal type
// statement replaces an earlier one. A category the pending record already
// wants is kept: the follow-up's category exclusions may be inferred from an
// excluded food's tastes and do not outrank what the user asked for.
func (m *Machine) merge(p Pending, res extract.Result, utterance string) (extract.Record, extract.Missing) {
	rec := p.Record.Clone()
	in := res.Record

	for _, id := range in.ExcludedFoods {
		rec.ExcludeFood(id)
	}
	for _, c := range in.ExcludedCategories {
		if !slices.Contains(rec.WantedCategories, c) {
			rec.ExcludeCategory(c)
		}
	}

	switch p.Missing {
	case extract.MissingCraving, extract.MissingAlternative:
		for _, id := range in.WantedFoods {
			rec.WantFood(id)
		}
		for _, c := range in.WantedCategories {
			rec.WantCategory(c)
		}
		if res.Signals.ExplicitIntensity {
			rec.Intensity = in.Intensity
		}
		if rec.MealType == "" {
			rec.MealType = in.MealType
		}
	case extract.MissingMealType:
		if !res.Signals.ExplicitMealType {
			if mt, ok := m.ex.MealFromReply(utterance); ok {
				rec.MealType = mt
			}
		}
	}

	if res.Signals.ExplicitMealType {
		rec.MealType = in.MealType
	}
	if res.Signals.Unsure {
		if rec.MealType == "" {
			rec.MealType = in.MealType
		}
		return rec, extract.MissingNone
	}
	return rec, extract.Evaluate(rec)
}

func (m *Machine) commitPut(ctx context.Context, p Pending) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.store.Put(ctx, p); err != nil {
		return fmt.Errorf("saving pending extraction: %w", err)
	}
	return nil
}

func (m *Machine) commitDelete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clearing pending extraction: %w", err)
	}
	return nil
}

// SweepOnce drops pending extractions older than the TTL from stores that
// support bulk expiry.
func (m *Machine) SweepOnce(ctx context.Context) (int, error) {
	sw, ok := m.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sw.DeleteExpired(ctx, m.now().Add(-m.ttl))
}

// Sweep runs SweepOnce every interval until ctx is done. The returned
// channel closes when the sweeper has stopped.
func (m *Machine) Sweep(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if interval <= 0 {
			return
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := m.SweepOnce(ctx)
				if err != nil && ctx.Err() == nil {
					m.logger.Warn("sweeping expired conversations", zap.Error(err))
					continue
				}
				if n > 0 {
					m.logger.Debug("swept expired conversations", zap.Int("count", n))
				}
			}
		}
	}()
	return done
}
