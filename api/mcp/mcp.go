// Package mcp provides the MCP (Model Context Protocol) server for the
// recall system. Exactly two tools are exposed to agents: memory_autopilot
// (call at the start of every task) and memory_track_changes (call after
// every file modification). Everything else stays internal.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/contextpack"
	"github.com/papercomputeco/recall/pkg/ingest"
	"github.com/papercomputeco/recall/pkg/search"
	"github.com/papercomputeco/recall/pkg/track"
	"github.com/papercomputeco/recall/pkg/utils"
)

type Config struct {
	// Pipeline ingests autopilot messages.
	Pipeline *ingest.Pipeline

	// Packs builds context packs.
	Packs *contextpack.Builder

	// Searcher answers the optional autopilot search.
	Searcher *search.Service

	// Tracker records file changes.
	Tracker *track.Tracker

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the autopilot and track-changes
// tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "recall",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Pipeline == nil {
		return nil, errors.New("ingest pipeline is required")
	}
	if c.Packs == nil {
		return nil, errors.New("context pack builder is required")
	}
	if c.Searcher == nil {
		return nil, errors.New("search service is required")
	}
	if c.Tracker == nil {
		return nil, errors.New("change tracker is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        autopilotToolName,
		Description: autopilotDescription,
	}, s.handleAutopilot)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        trackChangesToolName,
		Description: trackChangesDescription,
	}, s.handleTrackChanges)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
