package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/contextpack"
	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/ingest"
	"github.com/papercomputeco/recall/pkg/search"
	"github.com/papercomputeco/recall/pkg/store"
	"github.com/papercomputeco/recall/pkg/track"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngest runs one message through the ingestion pipeline.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req ingest.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	req.ProjectID = c.Params("project")

	result := s.pipeline.ProcessMessage(c.Context(), req)
	if result.Error != "" {
		// A fatal result means nothing was recorded; degraded results
		// still return 200 with the degradation described inline.
		status := fiber.StatusInternalServerError
		if strings.HasPrefix(result.Error, "invalid ") {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(result)
	}

	return c.JSON(result)
}

// handleContextPack builds a context pack. Query params: focus_goal_id,
// query, k_hops, format (json|markdown).
func (s *Server) handleContextPack(c *fiber.Ctx) error {
	req := contextpack.Request{
		ProjectID:   c.Params("project"),
		FocusGoalID: c.Query("focus_goal_id"),
		Query:       c.Query("query"),
	}

	if raw := c.Query("k_hops"); raw != "" {
		khops, err := strconv.Atoi(raw)
		if err != nil || khops < contextpack.MinKHops || khops > contextpack.MaxKHops {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid k_hops"})
		}
		req.KHops = khops
	}

	pack := s.packs.Build(c.Context(), req)

	if c.Query("format") == "markdown" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(contextpack.Markdown(pack))
	}

	return c.JSON(fiber.Map{
		"pack":     pack,
		"markdown": contextpack.Markdown(pack),
	})
}

// handleTrackChanges records changed files and their goal links.
func (s *Server) handleTrackChanges(c *fiber.Ctx) error {
	var req track.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	req.ProjectID = c.Params("project")

	result := s.tracker.TrackChanges(c.Context(), req)
	if result.Error != "" {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}

	return c.JSON(result)
}

// impactRequest is the POST body for impact analysis.
type impactRequest struct {
	Paths   []string `json:"paths,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// handleImpact analyzes the blast radius of a change.
func (s *Server) handleImpact(c *fiber.Ctx) error {
	var req impactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	report := s.analyzer.ForArtifacts(c.Context(), c.Params("project"), req.Paths, req.Symbols)
	if report.Error != "" && len(req.Paths) == 0 && len(req.Symbols) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(report)
	}

	return c.JSON(report)
}

// handleSearch runs a fulltext query. Query params: q, types (comma
// separated), limit.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("q")

	limit := search.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid limit"})
		}
		limit = n
	}

	var types []graph.NodeType
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, graph.NodeType(t))
			}
		}
	}

	hits, err := s.searcher.Fulltext(c.Context(), c.Params("project"), query, types, limit)
	if err != nil {
		var validation store.ValidationError
		if errors.As(err, &validation) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}

		s.logger.Error("search failed",
			zap.String("project", c.Params("project")),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "search failed"})
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": hits,
		"total":   len(hits),
	})
}
