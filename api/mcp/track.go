package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/track"
)

var (
	trackChangesToolName    = "memory_track_changes"
	trackChangesDescription = "Call this tool AFTER every file you create or modify. It records the changed files as code artifacts in the project memory graph, auto-links them to ALL active goals when related_goal_ids is omitted, and runs impact analysis to surface affected goals, tests to run, and strategies to review. Do NOT use memory_autopilot for tracking file changes."
)

// TrackChangesInput represents the input arguments for the track-changes tool.
type TrackChangesInput struct {
	ProjectID    string   `json:"project_id" jsonschema:"project identifier"`
	ChangedPaths []string `json:"changed_paths" jsonschema:"file paths that were created, modified, or deleted (required)"`
	CheckImpact  *bool    `json:"check_impact,omitempty" jsonschema:"whether to run impact analysis (default true)"`
	Language     string   `json:"language,omitempty" jsonschema:"programming language, auto-detected from extension if omitted"`
	// RelatedGoalIDs omitted (null) auto-links to all active goals; an
	// explicit empty list links to none.
	RelatedGoalIDs []string `json:"related_goal_ids,omitempty" jsonschema:"goal IDs to link; omit to auto-link all active goals"`
	GitCommit      string   `json:"git_commit,omitempty" jsonschema:"optional commit hash for provenance"`
	Summary        string   `json:"summary,omitempty" jsonschema:"optional short description of the change"`
}

// handleTrackChanges records the changed files into the graph.
func (s *Server) handleTrackChanges(ctx context.Context, req *mcp.CallToolRequest, input TrackChangesInput) (*mcp.CallToolResult, track.Result, error) {
	logger := s.config.Logger

	logger.Debug("MCP track-changes request",
		zap.String("project", input.ProjectID),
		zap.Int("paths", len(input.ChangedPaths)),
	)

	checkImpact := true
	if input.CheckImpact != nil {
		checkImpact = *input.CheckImpact
	}

	result := s.config.Tracker.TrackChanges(ctx, track.Request{
		ProjectID:      input.ProjectID,
		ChangedPaths:   input.ChangedPaths,
		Summary:        input.Summary,
		RelatedGoalIDs: input.RelatedGoalIDs,
		CheckImpact:    checkImpact,
		GitCommit:      input.GitCommit,
		Language:       input.Language,
	})

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		logger.Error("failed to marshal track-changes output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, track.Result{}, nil
	}

	toolResult := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
	if result.Error != "" {
		toolResult.IsError = true
	}

	return toolResult, result, nil
}
