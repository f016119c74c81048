// Package assistant is the caller-facing entry point: it runs an utterance
// through the conversation machine and, once the craving is complete, asks
// the recommendation engine for a food and renders a reply.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/conversation"
	"github.com/hurttlocker/craving/internal/extract"
	"github.com/hurttlocker/craving/internal/recommend"
	"github.com/hurttlocker/craving/internal/store"
)

// Journal records conversation turns. *store.SQLiteStore implements it.
type Journal interface {
	LogEvent(ctx context.Context, e *store.Event) error
}

// Interpretation is the result of one user turn.
type Interpretation struct {
	conversation.Outcome
	Context recommend.UserContext `json:"context"`
}

// Complete reports whether the turn produced a finished craving record.
func (i Interpretation) Complete() bool { return i.Kind == conversation.KindComplete }

// Reply is a full turn: the interpretation, the recommendation when the
// craving was complete, and the text to show the user.
type Reply struct {
	Interpretation Interpretation            `json:"interpretation"`
	Recommendation *recommend.Recommendation `json:"recommendation,omitempty"`
	Text           string                    `json:"text"`
}

// Assistant wires the pipeline together.
type Assistant struct {
	catalog *catalog.Catalog
	machine *conversation.Machine
	engine  *recommend.Engine
	journal Journal
	logger  *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithJournal records every turn.
func WithJournal(j Journal) Option {
	return func(a *Assistant) { a.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds an Assistant.
func New(c *catalog.Catalog, m *conversation.Machine, e *recommend.Engine, opts ...Option) *Assistant {
	a := &Assistant{catalog: c, machine: m, engine: e, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the catalog the assistant serves.
func (a *Assistant) Catalog() *catalog.Catalog { return a.catalog }

// Interpret runs one turn of the conversation for userID.
func (a *Assistant) Interpret(ctx context.Context, utterance string, uc recommend.UserContext, userID string) (Interpretation, error) {
	out, err := a.machine.Handle(ctx, userID, utterance)
	if err != nil {
		return Interpretation{}, fmt.Errorf("interpreting turn: %w", err)
	}
	a.record(ctx, userID, utterance, out)
	return Interpretation{Outcome: out, Context: uc}, nil
}

// Recommend scores a complete record.
func (a *Assistant) Recommend(ctx context.Context, rec extract.Record, uc recommend.UserContext) (recommend.Recommendation, error) {
	return a.engine.Recommend(ctx, rec, uc)
}

// Respond interprets the utterance and, when the craving is complete,
// recommends a food.
func (a *Assistant) Respond(ctx context.Context, utterance string, uc recommend.UserContext, userID string) (Reply, error) {
	in, err := a.Interpret(ctx, utterance, uc, userID)
	if err != nil {
		return Reply{}, err
	}
	switch in.Kind {
	case conversation.KindRejected:
		off := recommend.OffTopic()
		return Reply{Interpretation: in, Recommendation: &off, Text: in.Prompt}, nil
	case conversation.KindFollowUp:
		return Reply{Interpretation: in, Text: in.Prompt}, nil
	}

	rec, err := a.engine.Recommend(ctx, in.Record, uc)
	if err != nil {
		return Reply{Interpretation: in}, fmt.Errorf("recommending: %w", err)
	}
	a.logger.Info("recommendation",
		zap.String("user", userID),
		zap.String("conversation", in.ConversationID),
		zap.String("status", string(rec.Status)),
		zap.String("food", rec.Primary),
		zap.Float64("score", rec.Score))
	return Reply{Interpretation: in, Recommendation: &rec, Text: Render(a.catalog, rec)}, nil
}

func (a *Assistant) record(ctx context.Context, userID, utterance string, out conversation.Outcome) {
	if a.journal == nil {
		return
	}
	detail, err := json.Marshal(out)
	if err != nil {
		a.logger.Warn("encoding turn", zap.Error(err))
		return
	}
	e := &store.Event{
		UserID:         userID,
		ConversationID: out.ConversationID,
		Kind:           string(out.Kind),
		Utterance:      utterance,
		DetailJSON:     string(detail),
	}
	if err := a.journal.LogEvent(ctx, e); err != nil {
		a.logger.Warn("journaling turn", zap.String("user", userID), zap.Error(err))
	}
}
