// Package catalog holds the static food reference data used by the craving
// pipeline: food entities with their type/taste categories and nutrition, and
// the bounded vocabulary (category keywords, meal types, intensity markers,
// craving cues, indifference phrases) the lexical matcher is compiled from.
//
// A Catalog is built once at process start and is read-only afterwards; it is
// safe to share between goroutines without locking.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrEmptyCatalog is returned when a catalog source yields no foods.
var ErrEmptyCatalog = errors.New("catalog has no foods")

// MealType is the coarse meal slot a food or craving belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
	MealDessert   MealType = "dessert"
)

var mealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack, MealDessert}

// ParseMealType normalizes s into a known meal type.
func ParseMealType(s string) (MealType, bool) {
	v := MealType(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range mealTypes {
		if v == m {
			return m, true
		}
	}
	return "", false
}

// Compatible reports whether a food of meal type m may be served for a
// craving of meal type other. Unset meal types are compatible with anything,
// and snacks and desserts are interchangeable.
func (m MealType) Compatible(other MealType) bool {
	if m == "" || other == "" || m == other {
		return true
	}
	light := func(x MealType) bool { return x == MealSnack || x == MealDessert }
	return light(m) && light(other)
}

// FoodEntity is one immutable catalog record.
type FoodEntity struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Aliases       []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Types         []string `yaml:"types" json:"types"`
	Tastes        []string `yaml:"tastes" json:"tastes"`
	MealType      MealType `yaml:"meal_type" json:"meal_type"`
	GlycemicIndex float64  `yaml:"glycemic_index" json:"glycemic_index"`
	Carbs         float64  `yaml:"carbs" json:"carbs"`
	Sugar         float64  `yaml:"sugar" json:"sugar"`

	// Order is the load position; it is the deterministic tie-break
	// everywhere two foods would otherwise rank equally.
	Order int `yaml:"-" json:"-"`
	// Malformed marks entries that failed load-time validation. They stay
	// matchable by name but never serve as redirect alternates.
	Malformed bool `yaml:"-" json:"malformed,omitempty"`
}

// HasType reports whether the food carries type category c.
func (f FoodEntity) HasType(c string) bool { return slices.Contains(f.Types, c) }

// HasTaste reports whether the food carries taste category c.
func (f FoodEntity) HasTaste(c string) bool { return slices.Contains(f.Tastes, c) }

// HasCategory reports whether c is one of the food's type or taste categories.
func (f FoodEntity) HasCategory(c string) bool { return f.HasType(c) || f.HasTaste(c) }

// Phrases returns the surface forms the food is recognised by: its name
// followed by its aliases.
func (f FoodEntity) Phrases() []string {
	out := make([]string, 0, 1+len(f.Aliases))
	out = append(out, f.Name)
	out = append(out, f.Aliases...)
	return out
}

// Keywords maps a canonical vocabulary id (a category, meal type or
// intensity level) to the phrases that mention it.
type Keywords struct {
	ID      string   `yaml:"id" json:"id"`
	Phrases []string `yaml:"keywords" json:"keywords"`
}

// Vocabulary is the non-food part of the bounded language the core
// understands. Every list is ordered; order is the match tie-break.
type Vocabulary struct {
	Categories []Keywords `yaml:"categories" json:"categories"`
	MealTypes  []Keywords `yaml:"meal_types" json:"meal_types"`
	Intensity  []Keywords `yaml:"intensity" json:"intensity"`
	Cues       []string   `yaml:"cues" json:"cues"`
	Unsure     []string   `yaml:"unsure" json:"unsure"`
}

// Issue is a non-fatal validation finding for one food.
type Issue struct {
	FoodID  string
	Message string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s", i.FoodID, i.Message) }

// Catalog is the loaded, validated food table.
type Catalog struct {
	foods  []FoodEntity
	byID   map[string]int
	vocab  Vocabulary
	issues []Issue
}

// New validates foods and builds a Catalog. Structural problems (missing or
// duplicate ids, empty input) are errors; per-food data problems are
// recorded as Issues and the food is marked Malformed.
func New(foods []FoodEntity, vocab Vocabulary) (*Catalog, error) {
	if len(foods) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		foods: make([]FoodEntity, 0, len(foods)),
		byID:  make(map[string]int, len(foods)),
		vocab: normalizeVocabulary(vocab),
	}

	for i, f := range foods {
		f.ID = normalize(f.ID)
		if f.ID == "" {
			return nil, fmt.Errorf("food #%d: missing id", i+1)
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("food %q: duplicate id", f.ID)
		}
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			f.Name = f.ID
		}
		f.Aliases = cleanList(f.Aliases)
		f.Types = cleanList(f.Types)
		f.Tastes = cleanList(f.Tastes)
		f.Order = i

		for _, msg := range validateFood(&f) {
			c.issues = append(c.issues, Issue{FoodID: f.ID, Message: msg})
		}

		c.byID[f.ID] = len(c.foods)
		c.foods = append(c.foods, f)
	}

	return c, nil
}

func validateFood(f *FoodEntity) []string {
	var problems []string
	if len(f.Types) == 0 && len(f.Tastes) == 0 {
		problems = append(problems, "no type or taste categories")
		f.Malformed = true
	}
	if f.MealType != "" {
		m, ok := ParseMealType(string(f.MealType))
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown meal type %q", f.MealType))
		}
		f.MealType = m
	}
	if f.GlycemicIndex < 0 || f.GlycemicIndex > 100 {
		problems = append(problems, fmt.Sprintf("glycemic index %.0f out of range", f.GlycemicIndex))
		f.Malformed = true
	}
	if f.Carbs < 0 || f.Sugar < 0 {
		problems = append(problems, "negative nutrition values")
		f.Malformed = true
	}
	if f.Sugar > f.Carbs && f.Carbs > 0 {
		problems = append(problems, "sugar exceeds carbs")
	}
	return problems
}

// Foods returns all foods in load order. The slice is a copy.
func (c *Catalog) Foods() []FoodEntity { return slices.Clone(c.foods) }

// Len returns the number of foods.
func (c *Catalog) Len() int { return len(c.foods) }

// Food looks a food up by id.
func (c *Catalog) Food(id string) (FoodEntity, bool) {
	i, ok := c.byID[normalize(id)]
	if !ok {
		return FoodEntity{}, false
	}
	return c.foods[i], true
}

// Name returns the display name for id, falling back to the id itself.
func (c *Catalog) Name(id string) string {
	if f, ok := c.Food(id); ok {
		return f.Name
	}
	return id
}

// Vocabulary returns the non-food vocabulary.
func (c *Catalog) Vocabulary() Vocabulary { return c.vocab }

// Issues returns load-time validation findings.
func (c *Catalog) Issues() []Issue { return slices.Clone(c.issues) }

func normalizeVocabulary(v Vocabulary) Vocabulary {
	clean := func(in []Keywords) []Keywords {
		out := make([]Keywords, 0, len(in))
		for _, k := range in {
			id := normalize(k.ID)
			if id == "" {
				continue
			}
			out = append(out, Keywords{ID: id, Phrases: cleanList(k.Phrases)})
		}
		return out
	}
	return Vocabulary{
		Categories: clean(v.Categories),
		MealTypes:  clean(v.MealTypes),
		Intensity:  clean(v.Intensity),
		Cues:       cleanList(v.Cues),
		Unsure:     cleanList(v.Unsure),
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = normalize(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
