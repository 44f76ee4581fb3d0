// Package search is the thin fulltext query surface over the graph store.
// Validation happens here so a bad request never touches the backend.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

// DefaultLimit is the hit cap when the caller doesn't choose one.
const DefaultLimit = 20

// Service answers fulltext queries against a project's memory graph.
type Service struct {
	store store.Driver
	log   *zap.Logger
}

// NewService creates a search service.
func NewService(driver store.Driver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: driver, log: log}
}

// Fulltext runs a project-scoped fulltext query. nodeTypes nil means all
// types; an explicit list restricts to those types. limit must be positive.
// Hits come back relevance-descending with recency as the tie-break.
func (s *Service) Fulltext(ctx context.Context, projectID, query string, nodeTypes []graph.NodeType, limit int) ([]store.SearchHit, error) {
	if projectID == "" {
		return nil, store.ValidationError{Field: "project_id", Reason: "required"}
	}
	if strings.TrimSpace(query) == "" {
		return nil, store.ValidationError{Field: "query", Reason: "required"}
	}
	if limit <= 0 {
		return nil, store.ValidationError{Field: "limit", Reason: "must be positive"}
	}

	for _, t := range nodeTypes {
		if !graph.IsEntityType(t) && t != graph.TypeCodeArtifact {
			return nil, store.ValidationError{Field: "types", Reason: "unknown node type: " + string(t)}
		}
	}

	hits, err := s.store.FulltextSearch(ctx, projectID, query, nodeTypes, limit)
	if err != nil {
		s.log.Warn("fulltext search failed",
			zap.String("project", projectID),
			zap.Error(err),
		)
		return nil, err
	}

	return hits, nil
}
