// Package extract turns a craving utterance into a structured Record.
//
// The pipeline is rule based and bounded by the catalog vocabulary:
//   - lexical matching of foods, categories, meal types and intensity markers
//   - negation resolution over a dependency parse plus exclusion idioms
//   - category inference from the tastes of mentioned foods
//   - meal type and intensity resolution with defaults
//   - a completeness verdict naming the field a follow-up must ask for
//
// Indifference ("surprise me") short-circuits the pipeline with a neutral
// record.
package extract

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/lexicon"
	"github.com/hurttlocker/craving/internal/negation"
)

// Signals records what the utterance said explicitly, as opposed to what
// was inferred. The conversation layer uses them when merging follow-ups.
type Signals struct {
	ExplicitMealType  bool   `json:"explicit_meal_type,omitempty"`
	ExplicitIntensity bool   `json:"explicit_intensity,omitempty"`
	Cue               bool   `json:"cue,omitempty"`
	Unsure            bool   `json:"unsure,omitempty"`
	UnsurePhrase      string `json:"unsure_phrase,omitempty"`
}

// Result is the outcome of extracting one utterance.
type Result struct {
	Record  Record             `json:"record"`
	Status  Status             `json:"status"`
	Missing Missing            `json:"missing,omitempty"`
	Signals Signals            `json:"signals"`
	Matches []negation.Flagged `json:"matches,omitempty"`
}

// Extractor runs the extraction pipeline. It holds no per-call state and
// is safe for concurrent use.
type Extractor struct {
	catalog  *catalog.Catalog
	matcher  *lexicon.Matcher
	resolver *negation.Resolver
	unsure   *UnsureDetector
	now      func() time.Time
	loc      *time.Location
	logger   *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used for time-of-day buckets.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLocation sets the timezone for time-of-day buckets.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithResolver replaces the negation resolver.
func WithResolver(r *negation.Resolver) Option {
	return func(e *Extractor) { e.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Extractor over c.
func New(c *catalog.Catalog, opts ...Option) *Extractor {
	e := &Extractor{
		catalog: c,
		matcher: lexicon.NewMatcher(c),
		unsure:  NewUnsureDetector(c.Vocabulary().Unsure),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	if loc, err := time.LoadLocation(DefaultLocation); err == nil {
		e.loc = loc
	} else {
		e.loc = time.UTC
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = negation.NewResolver(negation.WithLogger(e.logger))
	}
	return e
}

// Catalog returns the catalog the extractor was built over.
func (e *Extractor) Catalog() *catalog.Catalog { return e.catalog }

// TimeOfDay returns the current clock bucket.
func (e *Extractor) TimeOfDay() TimeOfDay {
	return TimeOfDayAt(e.now().In(e.loc))
}

// Extract interprets one utterance. It never fails: empty input is an
// incomplete result and unrecognised input is off-topic.
func (e *Extractor) Extract(ctx context.Context, utterance string) Result {
	if strings.TrimSpace(utterance) == "" {
		return Result{Record: NewRecord(), Status: StatusIncomplete, Missing: MissingCraving}
	}

	phrase, unsure := e.unsure.Detect(utterance)

	_, matches := e.matcher.MatchText(utterance)
	flagged := e.resolver.Resolve(ctx, utterance, matches)
	if unsure && !wantsAnything(flagged) {
		excl, sig := e.assemble(flagged)
		return e.indifferent(excl, sig, phrase, flagged)
	}
	rec, sig := e.assemble(flagged)

	res := Result{Record: rec, Signals: sig, Matches: flagged}
	if len(flagged) == 0 {
		res.Status = StatusOffTopic
		return res
	}
	res.Missing = Evaluate(rec)
	if res.Missing != MissingNone {
		res.Status = StatusIncomplete
		return res
	}
	res.Status = StatusComplete
	res.Record = e.Finalize(rec)
	return res
}

// wantsAnything reports whether any food or category is mentioned without
// negation.
func wantsAnything(flagged []negation.Flagged) bool {
	for _, f := range flagged {
		if !f.Negated && (f.Class == lexicon.ClassFood || f.Class == lexicon.ClassCategory) {
			return true
		}
	}
	return false
}

// assemble partitions flagged matches into a record.
func (e *Extractor) assemble(flagged []negation.Flagged) (Record, Signals) {
	rec := NewRecord()
	var sig Signals
	var explicit Record // explicit category mentions only, in recency order

	for _, f := range flagged {
		switch f.Class {
		case lexicon.ClassFood:
			if f.Negated {
				rec.ExcludeFood(f.ID)
			} else {
				rec.WantFood(f.ID)
			}
		case lexicon.ClassCategory:
			if f.Negated {
				explicit.ExcludeCategory(f.ID)
			} else {
				explicit.WantCategory(f.ID)
			}
		case lexicon.ClassMealType:
			if f.Negated || sig.ExplicitMealType {
				continue
			}
			if m, ok := catalog.ParseMealType(f.ID); ok {
				rec.MealType = m
				sig.ExplicitMealType = true
			}
		case lexicon.ClassIntensity:
			if f.Negated || sig.ExplicitIntensity {
				continue
			}
			switch f.ID {
			case string(IntensityHigh):
				rec.Intensity = IntensityHigh
			case string(IntensityLow):
				rec.Intensity = IntensityLow
			default:
				continue
			}
			sig.ExplicitIntensity = true
		case lexicon.ClassCue:
			sig.Cue = true
		}
	}

	e.inferCategories(&rec, explicit)

	if rec.MealType == "" {
		for _, id := range rec.WantedFoods {
			if f, ok := e.catalog.Food(id); ok && f.MealType != "" {
				rec.MealType = f.MealType
				break
			}
		}
	}
	return rec, sig
}

// inferCategories merges explicit category mentions with the tastes of the
// mentioned foods. Explicit mentions override inferred ones; when a taste is
// inferred on both sides the wanted side keeps it.
func (e *Extractor) inferCategories(rec *Record, explicit Record) {
	var wanted, excluded []string
	for _, id := range rec.WantedFoods {
		if f, ok := e.catalog.Food(id); ok {
			for _, t := range f.Tastes {
				wanted = add(wanted, t)
			}
		}
	}
	for _, id := range rec.ExcludedFoods {
		if f, ok := e.catalog.Food(id); ok {
			for _, t := range f.Tastes {
				excluded = add(excluded, t)
			}
		}
	}

	for _, c := range explicit.WantedCategories {
		rec.WantCategory(c)
	}
	for _, c := range wanted {
		if !slices.Contains(explicit.ExcludedCategories, c) {
			rec.WantCategory(c)
		}
	}
	for _, c := range explicit.ExcludedCategories {
		rec.ExcludeCategory(c)
	}
	for _, c := range excluded {
		if !slices.Contains(explicit.WantedCategories, c) && !slices.Contains(wanted, c) {
			rec.ExcludeCategory(c)
		}
	}
}

// indifferent builds the neutral record for an unsure utterance. Stated
// exclusions and an explicit meal type survive; otherwise the meal follows
// the clock.
func (e *Extractor) indifferent(partial Record, sig Signals, phrase string, flagged []negation.Flagged) Result {
	rec := NewRecord()
	rec.ExcludedFoods = partial.ExcludedFoods
	rec.ExcludedCategories = partial.ExcludedCategories
	rec.Intensity = partial.Intensity
	if sig.ExplicitMealType {
		rec.MealType = partial.MealType
	} else {
		rec.MealType = MealForTimeOfDay(e.TimeOfDay())
	}
	sig.Unsure = true
	sig.UnsurePhrase = phrase
	e.logger.Debug("indifferent craving", zap.String("phrase", phrase), zap.String("meal", string(rec.MealType)))
	return Result{
		Record:  e.Finalize(rec),
		Status:  StatusComplete,
		Signals: sig,
		Matches: flagged,
	}
}

// Finalize fills the defaults a complete record needs: meal type falls back
// to snack and time of day follows the meal type, else the clock.
func (e *Extractor) Finalize(r Record) Record {
	r = r.Clone()
	if r.MealType == "" {
		r.MealType = catalog.MealSnack
	}
	if r.Intensity == "" {
		r.Intensity = IntensityMedium
	}
	if tod, ok := TimeOfDayForMeal(r.MealType); ok {
		r.TimeOfDay = tod
	} else {
		r.TimeOfDay = e.TimeOfDay()
	}
	return r
}

// MealFromReply reads a meal type out of a follow-up answer. Any meal
// vocabulary wins; the bare word "meal" resolves by the clock.
func (e *Extractor) MealFromReply(utterance string) (catalog.MealType, bool) {
	tokens, matches := e.matcher.MatchText(utterance)
	for _, m := range matches {
		if m.Class == lexicon.ClassMealType {
			if mt, ok := catalog.ParseMealType(m.ID); ok {
				return mt, true
			}
		}
	}
	for _, t := range tokens {
		if t.Norm == "meal" {
			return mainMealAt(e.TimeOfDay()), true
		}
	}
	return "", false
}
