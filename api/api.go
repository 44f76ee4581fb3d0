package api

import (
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/contextpack"
	"github.com/papercomputeco/recall/pkg/impact"
	"github.com/papercomputeco/recall/pkg/ingest"
	"github.com/papercomputeco/recall/pkg/search"
	"github.com/papercomputeco/recall/pkg/track"
)

// Server is the API server exposing the memory graph over REST, with the
// MCP handler mounted at /mcp on the same app.
type Server struct {
	config   Config
	pipeline *ingest.Pipeline
	packs    *contextpack.Builder
	analyzer *impact.Analyzer
	searcher *search.Service
	tracker  *track.Tracker
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The components are injected so the
// REST surface and the MCP tools share one pipeline and one store.
func NewServer(
	config Config,
	pipeline *ingest.Pipeline,
	packs *contextpack.Builder,
	analyzer *impact.Analyzer,
	searcher *search.Service,
	tracker *track.Tracker,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		pipeline: pipeline,
		packs:    packs,
		analyzer: analyzer,
		searcher: searcher,
		tracker:  tracker,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1/projects/:project")
	v1.Post("/ingest", s.handleIngest)
	v1.Get("/context-pack", s.handleContextPack)
	v1.Post("/track-changes", s.handleTrackChanges)
	v1.Post("/impact", s.handleImpact)
	v1.Get("/search", s.handleSearch)

	return s
}

// MountMCP mounts an MCP net/http handler at /mcp.
func (s *Server) MountMCP(handler http.Handler) {
	s.app.All("/mcp", adaptor.HTTPHandler(handler))
	s.app.All("/mcp/*", adaptor.HTTPHandler(handler))
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
