package extract

import (
	"slices"

	"github.com/hurttlocker/craving/internal/catalog"
)

// Intensity is how strongly the craving was stated.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Code is the scorer encoding: low 0, medium 1, high 2.
func (i Intensity) Code() int {
	switch i {
	case IntensityLow:
		return 0
	case IntensityHigh:
		return 2
	default:
		return 1
	}
}

// Record is the structured craving built from one or more turns.
// WantedFoods and ExcludedFoods (and the two category sets) are kept
// disjoint by the mutators; the latest statement wins.
type Record struct {
	WantedFoods        []string         `json:"wanted_foods"`
	ExcludedFoods      []string         `json:"excluded_foods"`
	WantedCategories   []string         `json:"wanted_categories"`
	ExcludedCategories []string         `json:"excluded_categories"`
	MealType           catalog.MealType `json:"meal_type,omitempty"`
	Intensity          Intensity        `json:"intensity"`
	TimeOfDay          TimeOfDay        `json:"time_of_day,omitempty"`
}

// NewRecord returns an empty record with medium intensity.
func NewRecord() Record {
	return Record{Intensity: IntensityMedium}
}

// WantFood adds id to the wanted foods and drops it from the excluded ones.
func (r *Record) WantFood(id string) {
	r.ExcludedFoods = remove(r.ExcludedFoods, id)
	r.WantedFoods = add(r.WantedFoods, id)
}

// ExcludeFood adds id to the excluded foods and drops it from the wanted ones.
func (r *Record) ExcludeFood(id string) {
	r.WantedFoods = remove(r.WantedFoods, id)
	r.ExcludedFoods = add(r.ExcludedFoods, id)
}

// WantCategory adds c to the wanted categories.
func (r *Record) WantCategory(c string) {
	r.ExcludedCategories = remove(r.ExcludedCategories, c)
	r.WantedCategories = add(r.WantedCategories, c)
}

// ExcludeCategory adds c to the excluded categories.
func (r *Record) ExcludeCategory(c string) {
	r.WantedCategories = remove(r.WantedCategories, c)
	r.ExcludedCategories = add(r.ExcludedCategories, c)
}

// HasWants reports whether anything is wanted.
func (r Record) HasWants() bool {
	return len(r.WantedFoods) > 0 || len(r.WantedCategories) > 0
}

// HasExclusions reports whether anything is excluded.
func (r Record) HasExclusions() bool {
	return len(r.ExcludedFoods) > 0 || len(r.ExcludedCategories) > 0
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	c.WantedFoods = slices.Clone(r.WantedFoods)
	c.ExcludedFoods = slices.Clone(r.ExcludedFoods)
	c.WantedCategories = slices.Clone(r.WantedCategories)
	c.ExcludedCategories = slices.Clone(r.ExcludedCategories)
	return c
}

func add(set []string, v string) []string {
	if slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

func remove(set []string, v string) []string {
	i := slices.Index(set, v)
	if i < 0 {
		return set
	}
	return slices.Delete(slices.Clone(set), i, i+1)
}

// Status is the completeness verdict for an extraction.
type Status string

const (
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
	StatusOffTopic   Status = "off_topic"
)

// Missing names the field a follow-up question must fill.
type Missing string

const (
	MissingNone        Missing = ""
	MissingCraving     Missing = "craving"
	MissingMealType    Missing = "meal_type"
	MissingAlternative Missing = "alternative"
)

// Evaluate decides what, if anything, r still lacks.
func Evaluate(r Record) Missing {
	switch {
	case !r.HasWants() && r.HasExclusions():
		return MissingAlternative
	case !r.HasWants():
		return MissingCraving
	case len(r.WantedFoods) == 0 && r.MealType == "":
		return MissingMealType
	default:
		return MissingNone
	}
}
