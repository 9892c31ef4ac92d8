package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/profile"
)

// NewMCPServer creates an MCP server exposing the safety and recommendation
// engine as tools, plus the user state and catalog as resources.
func NewMCPServer(deps AppDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"andas",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("andas: breathing exercise safety checks, recommendations and session tracking for the local user."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("check_exercise",
			mcp.WithDescription("Decide whether an exercise is allowed, adapted or blocked for the current user."),
			mcp.WithString("exercise_id", mcp.Description("Catalog id, e.g. box or 478"), mcp.Required()),
		),
		mcpCheckExercise(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend_exercise",
			mcp.WithDescription("Recommend the best exercise for the current user right now, with alternatives."),
		),
		mcpRecommend(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend_duration",
			mcp.WithDescription("Recommend how long to practise an exercise."),
			mcp.WithString("exercise_id", mcp.Description("Catalog id"), mcp.Required()),
		),
		mcpRecommendDuration(deps),
	)

	s.AddTool(
		mcp.NewTool("record_session",
			mcp.WithDescription("Record a finished session and return the integration period that should follow."),
			mcp.WithString("exercise_id", mcp.Description("Catalog id"), mcp.Required()),
			mcp.WithNumber("duration_minutes", mcp.Description("Minutes practised")),
			mcp.WithNumber("completed_cycles", mcp.Description("Breathing cycles completed")),
			mcp.WithString("feedback", mcp.Description("How the user felt afterwards"), mcp.Enum("calmer", "same", "moreActivated")),
			mcp.WithBoolean("early_exit", mcp.Description("Whether the user stopped early")),
		),
		mcpRecordSession(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://state",
			"User State",
			mcp.WithResourceDescription("Current user state as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceState(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://exercises",
			"Exercise Catalog",
			mcp.WithResourceDescription("All breathing exercises with their safety profiles"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpCheckExercise(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("exercise_id")
		if err != nil {
			return mcpError("exercise_id is required"), nil
		}
		view, err := deps.Check(id)
		if err != nil {
			return mcpError(fmt.Sprintf("check failed: %v", err)), nil
		}
		return mcpJSON(view)
	}
}

func mcpRecommend(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Recommend()
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpRecommendDuration(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("exercise_id")
		if err != nil {
			return mcpError("exercise_id is required"), nil
		}
		rec, err := deps.Duration(id)
		if err != nil {
			return mcpError(fmt.Sprintf("duration failed: %v", err)), nil
		}
		return mcpJSON(rec)
	}
}

func mcpRecordSession(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("exercise_id")
		if err != nil {
			return mcpError("exercise_id is required"), nil
		}
		fb, err := profile.ParseFeedback(req.GetString("feedback", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		out, err := deps.RecordSession(profile.SessionInput{
			ExerciseID:      id,
			DurationMinutes: req.GetFloat("duration_minutes", 0),
			CompletedCycles: req.GetInt("completed_cycles", 0),
			Feedback:        fb,
			WasEarlyExit:    req.GetBool("early_exit", false),
		})
		if errors.Is(err, catalog.ErrNotFound) {
			return mcpError(fmt.Sprintf("unknown exercise %q", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to record session: %v", err)), nil
		}
		return mcpJSON(out)
	}
}

func mcpResourceState(deps AppDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s, err := deps.Profile.State()
		if err != nil {
			return nil, fmt.Errorf("failed to get user state: %w", err)
		}
		return jsonResource(req.Params.URI, s)
	}
}

func mcpResourceCatalog(deps AppDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(req.Params.URI, deps.Catalog.All())
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
