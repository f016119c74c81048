package assistant

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/craving/internal/catalog"
	"github.com/hurttlocker/craving/internal/conversation"
	"github.com/hurttlocker/craving/internal/recommend"
)

const (
	replyClarify = "I couldn't find a good match for that right now. Could you tell me a bit more about what you feel like?"
	replyNoAlt   = "isn't a great fit for your levels right now, and nothing similar is either. Maybe check back a little later?"
)

// Render turns a recommendation into the message shown to the user.
func Render(c *catalog.Catalog, r recommend.Recommendation) string {
	switch r.Status {
	case recommend.StatusApproved:
		return fmt.Sprintf("Based on your levels, here's a great choice: %s (%s).", c.Name(r.Primary), r.SafetyTag)
	case recommend.StatusRedirected:
		if r.Alternate != "" {
			return fmt.Sprintf("Based on your levels, here's a great choice: %s instead of %s.",
				c.Name(r.Alternate), c.Name(r.Primary))
		}
		if len(r.Verdicts) > 0 {
			return renderVerdicts(c, r)
		}
		return capitalize(c.Name(r.Primary)) + " " + replyNoAlt
	case recommend.StatusRejectedOffTopic:
		return conversation.RejectionMessage
	default:
		return replyClarify
	}
}

// renderVerdicts covers mixed multi-food answers without a single alternate.
func renderVerdicts(c *catalog.Catalog, r recommend.Recommendation) string {
	var ok, swaps []string
	for _, v := range r.Verdicts {
		switch {
		case v.Approved:
			ok = append(ok, c.Name(v.Food))
		case v.Alternate != "":
			swaps = append(swaps, fmt.Sprintf("%s instead of %s", c.Name(v.Alternate), c.Name(v.Food)))
		}
	}
	var b strings.Builder
	b.WriteString("Based on your levels, here's a great choice: ")
	switch {
	case len(ok) > 0:
		b.WriteString(strings.Join(ok, " and "))
	case len(swaps) > 0:
		b.WriteString(swaps[0])
		swaps = swaps[1:]
	default:
		return capitalize(c.Name(r.Primary)) + " " + replyNoAlt
	}
	if len(swaps) > 0 {
		b.WriteString(", and ")
		b.WriteString(strings.Join(swaps, ", "))
	}
	b.WriteString(".")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
