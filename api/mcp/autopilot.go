package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/contextpack"
	"github.com/papercomputeco/recall/pkg/ingest"
	"github.com/papercomputeco/recall/pkg/store"
)

var (
	autopilotToolName    = "memory_autopilot"
	autopilotDescription = "Call this tool at the START of every task. It ingests the user's message into the project memory graph (extracting goals, constraints, preferences, pain points) and returns the full context pack: active goals, constraints, preferences, open pain points, tracked code, strategies and decisions. Optionally searches existing memory when search_query is provided. Do NOT call this after creating or modifying files; use memory_track_changes for that."

	// Appended to every autopilot context pack so agents keep the graph
	// current as they work.
	trackChangesReminder = "\n\n---\n*REMINDER: Call `memory_track_changes` after EVERY file you create or modify to keep the project memory updated.*"

	autopilotSearchLimit = 10
)

// AutopilotInput represents the input arguments for the autopilot tool.
type AutopilotInput struct {
	ProjectID   string   `json:"project_id" jsonschema:"project identifier, typically the workspace folder name"`
	UserText    string   `json:"user_text" jsonschema:"the user's message or request to ingest"`
	SearchQuery string   `json:"search_query,omitempty" jsonschema:"optional query to search existing memory"`
	Files       []string `json:"files,omitempty" jsonschema:"optional list of file paths involved"`
	Diff        string   `json:"diff,omitempty" jsonschema:"optional code diff"`
	Symbols     []string `json:"symbols,omitempty" jsonschema:"optional list of code symbols"`
	Tags        []string `json:"tags,omitempty" jsonschema:"optional tags for categorization"`
	KHops       int      `json:"k_hops,omitempty" jsonschema:"graph traversal depth 1-5 (default 2)"`
}

// AutopilotOutput represents the output of the autopilot tool.
type AutopilotOutput struct {
	Markdown      string            `json:"markdown"`
	InteractionID string            `json:"interaction_id,omitempty"`
	Ingest        ingest.Result     `json:"ingest"`
	SearchResults []store.SearchHit `json:"search_results,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// handleAutopilot ingests the message, builds the context pack, and runs
// the optional search. Each step degrades independently so the agent always
// gets whatever context could be assembled.
func (s *Server) handleAutopilot(ctx context.Context, req *mcp.CallToolRequest, input AutopilotInput) (*mcp.CallToolResult, AutopilotOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP autopilot request",
		zap.String("project", input.ProjectID),
		zap.Int("kHops", input.KHops),
	)

	output := AutopilotOutput{}

	// Step 1: ingest the message.
	output.Ingest = s.config.Pipeline.ProcessMessage(ctx, ingest.Request{
		ProjectID: input.ProjectID,
		RawText:   input.UserText,
		Files:     input.Files,
		Diff:      input.Diff,
		Symbols:   input.Symbols,
		Tags:      input.Tags,
	})
	output.InteractionID = output.Ingest.InteractionID
	if output.Ingest.Error != "" {
		output.Error = output.Ingest.Error
	}

	// Step 2: build the context pack. The ingested message participates via
	// the optional search query, not the seed set.
	pack := s.config.Packs.Build(ctx, contextpack.Request{
		ProjectID: input.ProjectID,
		Query:     input.SearchQuery,
		KHops:     input.KHops,
	})
	output.Markdown = contextpack.Markdown(pack) + trackChangesReminder

	// Step 3: optional search.
	if input.SearchQuery != "" {
		hits, err := s.config.Searcher.Fulltext(ctx, input.ProjectID, input.SearchQuery, nil, autopilotSearchLimit)
		if err != nil {
			logger.Warn("autopilot search failed", zap.Error(err))
			if output.Error == "" {
				output.Error = err.Error()
			}
		} else {
			output.SearchResults = hits
		}
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal autopilot output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, AutopilotOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
