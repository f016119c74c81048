// Package mcp provides a Model Context Protocol server for the craving
// assistant.
//
// It exposes interpretation, recommendation and the combined respond turn
// as MCP tools, and the food catalog as an MCP resource. The server is meant
// for the stdio transport.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/assistant"
	"github.com/hurttlocker/craving/internal/extract"
	"github.com/hurttlocker/craving/internal/recommend"
)

// DefaultUserID is used when a tool call names no user.
const DefaultUserID = "default"

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Assistant *assistant.Assistant
	Version   string // version string for MCP server info
	Logger    *zap.Logger
}

// NewServer creates a configured MCP server with all craving tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"Craving",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
		server.WithRecovery(),
	)

	registerInterpretTool(s, cfg.Assistant)
	registerRecommendTool(s, cfg.Assistant, logger)
	registerRespondTool(s, cfg.Assistant, logger)

	registerCatalogResource(s, cfg.Assistant.Catalog())

	return s
}

// Serve runs the server over stdin/stdout until the input closes.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func userContextOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("glucose_level",
			mcp.Description("Current blood glucose in mg/dL"),
			mcp.Min(0),
		),
		mcp.WithNumber("glucose_average",
			mcp.Description("Recent average blood glucose in mg/dL"),
			mcp.Min(0),
		),
		mcp.WithString("trend",
			mcp.Description("Glucose trend direction"),
			mcp.Enum("falling", "stable", "rising"),
		),
		mcp.WithNumber("pregnancy_week",
			mcp.Description("Current pregnancy week (0 if not applicable)"),
			mcp.Min(0),
		),
	}
}

func userContextFrom(req mcp.CallToolRequest) (recommend.UserContext, error) {
	trend, err := recommend.ParseTrend(req.GetString("trend", ""))
	if err != nil {
		return recommend.UserContext{}, err
	}
	return recommend.UserContext{
		GlucoseLevel:   req.GetFloat("glucose_level", 0),
		GlucoseAverage: req.GetFloat("glucose_average", 0),
		Trend:          trend,
		PregnancyWeek:  req.GetInt("pregnancy_week", 0),
	}, nil
}

func userIDFrom(req mcp.CallToolRequest) string {
	if id := strings.TrimSpace(req.GetString("user_id", "")); id != "" {
		return id
	}
	return DefaultUserID
}

func registerInterpretTool(s *server.MCPServer, a *assistant.Assistant) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Interpret one chat turn about a food craving. Returns the structured craving record when complete, a follow-up question when something is missing, or a rejection for non-food messages. Follow-ups are remembered per user for 10 minutes."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("utterance",
			mcp.Required(),
			mcp.Description("What the user said"),
		),
		mcp.WithString("user_id",
			mcp.Description("Conversation owner. Defaults to 'default'."),
		),
	}
	tool := mcp.NewTool("craving_interpret", append(opts, userContextOptions()...)...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		utterance, err := req.RequireString("utterance")
		if err != nil {
			return mcp.NewToolResultError("utterance is required"), nil
		}
		uc, err := userContextFrom(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid user context: %v", err)), nil
		}

		in, err := a.Interpret(ctx, utterance, uc, userIDFrom(req))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("interpret error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(in, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRecommendTool(s *server.MCPServer, a *assistant.Assistant, logger *zap.Logger) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Recommend a food for a complete craving record (as returned by craving_interpret) and the user's glucose context. Returns approved, redirected (with a same-family alternate) or clarification-needed."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithObject("record",
			mcp.Required(),
			mcp.Description("Craving record: wanted_foods, excluded_foods, wanted_categories, excluded_categories, meal_type, intensity, time_of_day"),
		),
	}
	tool := mcp.NewTool("craving_recommend", append(opts, userContextOptions()...)...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := req.GetArguments()["record"]
		if !ok || raw == nil {
			return mcp.NewToolResultError("record is required"), nil
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid record: %v", err)), nil
		}
		uc, err := userContextFrom(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid user context: %v", err)), nil
		}

		out, err := a.Recommend(ctx, rec, uc)
		if err != nil {
			logger.Error("recommend failed", zap.Error(err))
			return mcp.NewToolResultError(recommendError(err)), nil
		}
		data, _ := json.MarshalIndent(map[string]any{
			"recommendation": out,
			"text":           assistant.Render(a.Catalog(), out),
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRespondTool(s *server.MCPServer, a *assistant.Assistant, logger *zap.Logger) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Run a full chat turn: interpret the message and, once the craving is complete, recommend a food and return a friendly reply."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("utterance",
			mcp.Required(),
			mcp.Description("What the user said"),
		),
		mcp.WithString("user_id",
			mcp.Description("Conversation owner. Defaults to 'default'."),
		),
	}
	tool := mcp.NewTool("craving_respond", append(opts, userContextOptions()...)...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		utterance, err := req.RequireString("utterance")
		if err != nil {
			return mcp.NewToolResultError("utterance is required"), nil
		}
		uc, err := userContextFrom(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid user context: %v", err)), nil
		}

		reply, err := a.Respond(ctx, utterance, uc, userIDFrom(req))
		if err != nil {
			logger.Error("respond failed", zap.Error(err))
			return mcp.NewToolResultError(recommendError(err)), nil
		}
		data, _ := json.MarshalIndent(reply, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func decodeRecord(raw any) (extract.Record, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return extract.Record{}, err
	}
	rec := extract.NewRecord()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return extract.Record{}, err
	}
	if rec.Intensity == "" {
		rec.Intensity = extract.IntensityMedium
	}
	return rec, nil
}

func recommendError(err error) string {
	if errors.Is(err, recommend.ErrScorerUnavailable) {
		return fmt.Sprintf("safety scorer unavailable, no recommendation made: %v", err)
	}
	return fmt.Sprintf("recommend error: %v", err)
}
