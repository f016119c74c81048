package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/craving/internal/catalog"
)

// CatalogURI is the catalog resource address.
const CatalogURI = "craving://catalog"

func registerCatalogResource(s *server.MCPServer, c *catalog.Catalog) {
	resource := mcp.NewResource(
		CatalogURI,
		"Food Catalog",
		mcp.WithResourceDescription("Every food the assistant knows with its type and taste categories, meal type and nutrition, plus the meal types and categories it understands."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		v := c.Vocabulary()
		categories := make([]string, 0, len(v.Categories))
		for _, k := range v.Categories {
			categories = append(categories, k.ID)
		}
		meals := make([]string, 0, len(v.MealTypes))
		for _, k := range v.MealTypes {
			meals = append(meals, k.ID)
		}
		issues := make([]string, 0)
		for _, i := range c.Issues() {
			issues = append(issues, i.String())
		}

		payload := map[string]interface{}{
			"foods":      c.Foods(),
			"count":      c.Len(),
			"categories": categories,
			"meal_types": meals,
			"issues":     issues,
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
