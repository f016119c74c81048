// Package recommend turns a complete craving record into a single food
// recommendation: it filters the catalog by the record's constraints, scores
// candidates through an injected Scorer, applies a glucose-dependent
// approval threshold and, when a requested food is rejected, redirects to
// the best approved food of the same family.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/extract"
)

// ErrScorerUnavailable wraps every scoring failure. Callers must treat it
// as a dependency outage, not as a verdict on the food.
var ErrScorerUnavailable = errors.New("safety scorer unavailable")

// Status is the recommendation verdict.
type Status string

const (
	StatusApproved            Status = "approved"
	StatusRedirected          Status = "redirected"
	StatusClarificationNeeded Status = "clarification-needed"
	StatusRejectedOffTopic    Status = "rejected-off-topic"
)

// Safety tags shown to the user.
const (
	SafetyHigh   = "High Safety"
	SafetyMedium = "Medium Safety"
	SafetyLow    = "Low Safety"
)

// highSafetyMargin is how far above the threshold a score must be for the
// high tag.
const highSafetyMargin = 0.2

// Verdict is the per-food result of a multi-food request.
type Verdict struct {
	Food      string  `json:"food"`
	Score     float64 `json:"score"`
	Approved  bool    `json:"approved"`
	Alternate string  `json:"alternate,omitempty"`
}

// Recommendation is the engine output.
type Recommendation struct {
	Status    Status    `json:"status"`
	Primary   string    `json:"primary,omitempty"`
	Alternate string    `json:"alternate,omitempty"`
	SafetyTag string    `json:"safety_tag,omitempty"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
	Verdicts  []Verdict `json:"verdicts,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// OffTopic is the recommendation returned for a non-food utterance.
func OffTopic() Recommendation {
	return Recommendation{Status: StatusRejectedOffTopic, Reason: "not a food request"}
}

// DefaultWorkers bounds concurrent scorer calls.
const DefaultWorkers = 4

// Engine produces recommendations. It is safe for concurrent use when its
// Scorer is.
type Engine struct {
	catalog *catalog.Catalog
	scorer  Scorer
	policy  ThresholdPolicy
	workers int
	now     func() time.Time
	loc     *time.Location
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds replaces the threshold policy. It is validated by NewEngine.
func WithThresholds(p ThresholdPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithWorkers bounds concurrent scorer calls.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithClock sets the clock used when a record carries no time of day.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(e *Engine) {
		e.now = now
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine builds an Engine over c scoring with s.
func NewEngine(c *catalog.Catalog, s Scorer, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, catalog.ErrEmptyCatalog
	}
	if s == nil {
		return nil, fmt.Errorf("%w: no scorer configured", ErrScorerUnavailable)
	}
	e := &Engine{
		catalog: c,
		scorer:  s,
		policy:  DefaultThresholds(),
		workers: DefaultWorkers,
		now:     time.Now,
		loc:     time.UTC,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Threshold returns the approval threshold for a glucose level.
func (e *Engine) Threshold(glucose float64) float64 { return e.policy.For(glucose) }

type scored struct {
	food  catalog.FoodEntity
	score float64
}

// Recommend ranks the catalog for rec under uc.
func (e *Engine) Recommend(ctx context.Context, rec extract.Record, uc UserContext) (Recommendation, error) {
	thr := e.policy.For(uc.GlucoseLevel)
	tod := rec.TimeOfDay
	if tod == "" {
		tod = extract.TimeOfDayAt(e.now().In(e.loc))
	}
	req := request{rec: rec, uc: uc, tod: tod, thr: thr}

	if len(rec.WantedFoods) > 0 {
		return e.requested(ctx, req)
	}
	return e.open(ctx, req)
}

type request struct {
	rec extract.Record
	uc  UserContext
	tod extract.TimeOfDay
	thr float64
}

// allowed reports whether f survives the record's exclusions.
func allowed(rec extract.Record, f catalog.FoodEntity) bool {
	if slices.Contains(rec.ExcludedFoods, f.ID) {
		return false
	}
	for _, c := range rec.ExcludedCategories {
		if f.HasCategory(c) {
			return false
		}
	}
	return true
}

// requested handles explicit single- and multi-food requests.
func (e *Engine) requested(ctx context.Context, req request) (Recommendation, error) {
	var foods, offMeal []catalog.FoodEntity
	for _, id := range req.rec.WantedFoods {
		f, ok := e.catalog.Food(id)
		if !ok || !allowed(req.rec, f) {
			continue
		}
		if !req.rec.MealType.Compatible(f.MealType) {
			offMeal = append(offMeal, f)
			continue
		}
		foods = append(foods, f)
	}
	if len(foods) == 0 && len(offMeal) > 0 {
		return e.mealConflict(ctx, req, offMeal)
	}
	if len(foods) == 0 {
		return Recommendation{
			Status:    StatusClarificationNeeded,
			Threshold: req.thr,
			Reason:    "every requested food is excluded by the stated preferences",
		}, nil
	}
	if len(offMeal) > 0 {
		e.logger.Debug("dropped requested foods outside the meal type",
			zap.Int("count", len(offMeal)), zap.String("meal", string(req.rec.MealType)))
	}

	results, err := e.scoreAll(ctx, req, foods)
	if err != nil {
		return Recommendation{}, err
	}

	if len(results) == 1 {
		r := results[0]
		if r.score >= req.thr {
			return e.approve(r, req.thr), nil
		}
		alt, err := e.redirect(ctx, req, r.food, foods)
		if err != nil {
			return Recommendation{}, err
		}
		return e.redirected(r, alt, req.thr), nil
	}

	verdicts := make([]Verdict, len(results))
	allApproved := true
	for i, r := range results {
		verdicts[i] = Verdict{Food: r.food.ID, Score: r.score, Approved: r.score >= req.thr}
		if verdicts[i].Approved {
			continue
		}
		allApproved = false
		alt, err := e.redirect(ctx, req, r.food, foods)
		if err != nil {
			return Recommendation{}, err
		}
		if alt != nil {
			verdicts[i].Alternate = alt.food.ID
		}
	}

	best := -1
	for i, r := range results {
		if verdicts[i].Approved && (best < 0 || better(r, results[best])) {
			best = i
		}
	}
	var out Recommendation
	if best >= 0 {
		out = e.approve(results[best], req.thr)
		if !allApproved {
			out.Status = StatusRedirected
			out.Reason = "some requested foods are not a good fit right now"
		}
	} else {
		out = e.redirected(results[0], nil, req.thr)
		out.Alternate = verdicts[0].Alternate
	}
	out.Verdicts = verdicts
	return out, nil
}

// mealConflict handles a request whose foods all belong to another meal
// type. The first food is redirected to a same-family food that fits the
// meal; without one the caller is asked to clarify.
func (e *Engine) mealConflict(ctx context.Context, req request, offMeal []catalog.FoodEntity) (Recommendation, error) {
	results, err := e.scoreAll(ctx, req, offMeal[:1])
	if err != nil {
		return Recommendation{}, err
	}
	r := results[0]
	reason := fmt.Sprintf("%s is not a %s food", r.food.Name, req.rec.MealType)
	alt, err := e.redirect(ctx, req, r.food, offMeal)
	if err != nil {
		return Recommendation{}, err
	}
	if alt == nil {
		return Recommendation{
			Status:    StatusClarificationNeeded,
			Threshold: req.thr,
			Reason:    reason,
		}, nil
	}
	out := e.redirected(r, alt, req.thr)
	out.Reason = reason
	return out, nil
}

// open handles category and indifferent cravings: the top-scored food of
// the filtered pool.
func (e *Engine) open(ctx context.Context, req request) (Recommendation, error) {
	pool := e.openPool(req.rec, req.rec.WantedCategories, true)
	if len(pool) == 0 && len(req.rec.WantedCategories) > 1 {
		pool = e.openPool(req.rec, req.rec.WantedCategories, false)
	}
	if len(pool) == 0 {
		return Recommendation{
			Status:    StatusClarificationNeeded,
			Threshold: req.thr,
			Reason:    "no catalog food matches the craving",
		}, nil
	}

	results, err := e.scoreAll(ctx, req, pool)
	if err != nil {
		return Recommendation{}, err
	}
	top := results[0]
	for _, r := range results[1:] {
		if better(r, top) {
			top = r
		}
	}
	if top.score >= req.thr {
		return e.approve(top, req.thr), nil
	}
	e.logger.Info("no candidate clears the threshold",
		zap.String("food", top.food.ID), zap.Float64("score", top.score), zap.Float64("threshold", req.thr))
	return Recommendation{
		Status:    StatusClarificationNeeded,
		Primary:   top.food.ID,
		SafetyTag: SafetyLow,
		Score:     top.score,
		Threshold: req.thr,
		Reason:    "nothing matching the craving is a good fit right now",
	}, nil
}

// openPool lists well-formed, allowed, meal-compatible foods carrying all
// (or, with all=false, any) of the wanted categories.
func (e *Engine) openPool(rec extract.Record, wanted []string, all bool) []catalog.FoodEntity {
	var pool []catalog.FoodEntity
	for _, f := range e.catalog.Foods() {
		if f.Malformed || !allowed(rec, f) || !rec.MealType.Compatible(f.MealType) {
			continue
		}
		if len(wanted) > 0 && !matchesCategories(f, wanted, all) {
			continue
		}
		pool = append(pool, f)
	}
	return pool
}

func matchesCategories(f catalog.FoodEntity, cats []string, all bool) bool {
	for _, c := range cats {
		has := f.HasCategory(c)
		if all && !has {
			return false
		}
		if !all && has {
			return true
		}
	}
	return all
}

// sameFamily reports whether alt may stand in for f: it shares a type
// category (a taste category when f has no types) and carries every one of
// f's tastes.
func sameFamily(f, alt catalog.FoodEntity) bool {
	related := false
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if alt.HasType(t) {
				related = true
				break
			}
		}
	} else {
		for _, t := range f.Tastes {
			if alt.HasTaste(t) {
				related = true
				break
			}
		}
	}
	if !related {
		return false
	}
	for _, t := range f.Tastes {
		if !alt.HasTaste(t) {
			return false
		}
	}
	return true
}

// redirect finds the best approved same-family alternate for a rejected
// food. Requested foods, malformed entries, excluded foods and meal-type
// conflicts are never offered.
func (e *Engine) redirect(ctx context.Context, req request, f catalog.FoodEntity, requested []catalog.FoodEntity) (*scored, error) {
	var cands []catalog.FoodEntity
	for _, alt := range e.catalog.Foods() {
		if alt.ID == f.ID || alt.Malformed || !allowed(req.rec, alt) {
			continue
		}
		if slices.ContainsFunc(requested, func(r catalog.FoodEntity) bool { return r.ID == alt.ID }) {
			continue
		}
		if !req.rec.MealType.Compatible(alt.MealType) || !sameFamily(f, alt) {
			continue
		}
		cands = append(cands, alt)
	}
	if len(cands) == 0 {
		return nil, nil
	}
	results, err := e.scoreAll(ctx, req, cands)
	if err != nil {
		return nil, err
	}
	var best *scored
	for i := range results {
		r := results[i]
		if r.score < req.thr {
			continue
		}
		if best == nil || better(r, *best) {
			best = &results[i]
		}
	}
	return best, nil
}

// better orders by score, then catalog order.
func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.food.Order < b.food.Order
}

func (e *Engine) approve(r scored, thr float64) Recommendation {
	tag := SafetyMedium
	if r.score-thr >= highSafetyMargin {
		tag = SafetyHigh
	}
	e.logger.Debug("approved", zap.String("food", r.food.ID), zap.Float64("score", r.score), zap.Float64("threshold", thr))
	return Recommendation{
		Status:    StatusApproved,
		Primary:   r.food.ID,
		SafetyTag: tag,
		Score:     r.score,
		Threshold: thr,
	}
}

func (e *Engine) redirected(r scored, alt *scored, thr float64) Recommendation {
	out := Recommendation{
		Status:    StatusRedirected,
		Primary:   r.food.ID,
		SafetyTag: SafetyLow,
		Score:     r.score,
		Threshold: thr,
	}
	if alt != nil {
		out.Alternate = alt.food.ID
		e.logger.Debug("redirected", zap.String("food", r.food.ID), zap.String("alternate", alt.food.ID),
			zap.Float64("score", r.score), zap.Float64("alternate_score", alt.score))
	} else {
		out.Reason = "no similar food is a good fit right now"
	}
	return out
}

// scoreAll scores foods concurrently. Results keep the input order.
func (e *Engine) scoreAll(ctx context.Context, req request, foods []catalog.FoodEntity) ([]scored, error) {
	out := make([]scored, len(foods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, f := range foods {
		g.Go(func() error {
			s, err := e.scorer.Score(gctx, BuildFeatures(req.uc, req.rec, req.tod, f))
			if err != nil {
				return fmt.Errorf("%w: scoring %s: %w", ErrScorerUnavailable, f.ID, err)
			}
			if math.IsNaN(s) || s < 0 || s > 1 {
				return fmt.Errorf("%w: score %v for %s outside [0,1]", ErrScorerUnavailable, s, f.ID)
			}
			out[i] = scored{food: f, score: s}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rank scores and orders foods for rec without applying the threshold. It
// backs catalog previews and diagnostics.
func (e *Engine) Rank(ctx context.Context, rec extract.Record, uc UserContext) ([]Verdict, error) {
	tod := rec.TimeOfDay
	if tod == "" {
		tod = extract.TimeOfDayAt(e.now().In(e.loc))
	}
	req := request{rec: rec, uc: uc, tod: tod, thr: e.policy.For(uc.GlucoseLevel)}
	pool := e.openPool(rec, rec.WantedCategories, true)
	results, err := e.scoreAll(ctx, req, pool)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return better(results[i], results[j]) })
	out := make([]Verdict, len(results))
	for i, r := range results {
		out[i] = Verdict{Food: r.food.ID, Score: r.score, Approved: r.score >= req.thr}
	}
	return out, nil
}
