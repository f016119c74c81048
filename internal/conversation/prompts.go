package conversation

import (
	"strings"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/extract"
)

const (
	promptCraving       = "What kind of food are you craving? For example: chocolate, pizza, something sweet..."
	promptCravingAgain  = "I didn't catch that. What food are you craving? (e.g., chocolate, pizza, chips)"
	promptMealTypeAgain = "Is this for a snack, breakfast, lunch, or dinner?"

	// RejectionMessage answers an utterance that is not about food.
	RejectionMessage = "I can only help with food cravings. Tell me what you feel like eating!"
)

// followUpPrompt is the question asking for the missing field. repeat is
// set when the previous turn already asked for the same field.
func followUpPrompt(c *catalog.Catalog, r extract.Record, missing extract.Missing, repeat bool) string {
	switch missing {
	case extract.MissingAlternative:
		return "Got it, no " + joinNames(c, r.ExcludedFoods, r.ExcludedCategories, " or ") + "! What would you like instead?"
	case extract.MissingMealType:
		if repeat {
			return promptMealTypeAgain
		}
		return "Something " + joinNames(c, r.WantedFoods, r.WantedCategories, " and ") +
			" sounds good! Is this for a snack or a meal (breakfast/lunch/dinner)?"
	default:
		if repeat {
			return promptCravingAgain
		}
		return promptCraving
	}
}

func joinNames(c *catalog.Catalog, foods, categories []string, sep string) string {
	names := make([]string, 0, len(foods))
	for _, id := range foods {
		names = append(names, c.Name(id))
	}
	if len(names) == 0 {
		names = categories
	}
	if len(names) == 0 {
		return "that"
	}
	return strings.Join(names, sep)
}
