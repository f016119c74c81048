package extract

import (
	"time"
	_ "time/tzdata" // default location must resolve on hosts without zoneinfo

	"github.com/hurttlocker/craving/internal/catalog"
)

// DefaultLocation is the timezone time-of-day buckets are computed in.
const DefaultLocation = "Asia/Jerusalem"

// TimeOfDay is a coarse clock bucket.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// Code is the scorer encoding: morning 0 through night 3.
func (t TimeOfDay) Code() int {
	switch t {
	case Morning:
		return 0
	case Afternoon:
		return 1
	case Evening:
		return 2
	default:
		return 3
	}
}

// TimeOfDayAt buckets the local hour: morning 5-11, afternoon 12-16,
// evening 17-20, night otherwise.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}

// TimeOfDayForMeal maps a meal type to the bucket it is usually eaten in.
// Snacks have no bucket.
func TimeOfDayForMeal(m catalog.MealType) (TimeOfDay, bool) {
	switch m {
	case catalog.MealBreakfast:
		return Morning, true
	case catalog.MealLunch:
		return Afternoon, true
	case catalog.MealDinner, catalog.MealDessert:
		return Evening, true
	default:
		return "", false
	}
}

// MealForTimeOfDay is the meal an indifferent user is most likely after.
func MealForTimeOfDay(t TimeOfDay) catalog.MealType {
	switch t {
	case Morning:
		return catalog.MealBreakfast
	case Afternoon:
		return catalog.MealLunch
	case Evening:
		return catalog.MealDinner
	default:
		return catalog.MealSnack
	}
}

// mainMealAt resolves the bare word "meal" by the clock.
func mainMealAt(t TimeOfDay) catalog.MealType {
	switch t {
	case Morning:
		return catalog.MealBreakfast
	case Afternoon:
		return catalog.MealLunch
	default:
		return catalog.MealDinner
	}
}

// LoadLocation resolves name, falling back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
