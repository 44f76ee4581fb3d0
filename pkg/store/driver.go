// Package store defines the graph-store driver interface for the memory
// graph. The Driver is the single shared mutable resource in the system:
// ingestion writes through it, and the context-pack builder, impact analyzer,
// and search service read from it, possibly concurrently.
//
// Every operation is scoped by project id; no call may observe nodes from
// another project. Implementations must make UpsertArtifact and CreateEntity
// safe under concurrent writers (atomic upsert, uniqueness enforced at the
// storage level) so readers never observe half-written rows.
package store

import (
	"context"
	"time"

	"github.com/papercomputeco/recall/pkg/graph"
)

// Driver persists and retrieves memory-graph nodes and edges.
type Driver interface {
	// PutInteraction stores an immutable interaction record.
	PutInteraction(ctx context.Context, in *graph.Interaction) error

	// GetInteraction retrieves an interaction by id.
	GetInteraction(ctx context.Context, projectID, id string) (*graph.Interaction, error)

	// CreateEntity inserts a new entity node. Returns ConflictError if a
	// non-terminal entity with the same (project, type, normalized title)
	// already exists; the caller lost a dedup race and should merge into
	// the winner instead.
	CreateEntity(ctx context.Context, e *graph.Entity) error

	// GetEntity retrieves an entity by id.
	GetEntity(ctx context.Context, projectID, id string) (*graph.Entity, error)

	// GetEntities retrieves entities by id, skipping ids that don't resolve.
	GetEntities(ctx context.Context, projectID string, ids []string) ([]*graph.Entity, error)

	// FindActiveEntity finds the non-terminal entity of the given type whose
	// normalized title matches exactly. Returns NotFoundError when absent.
	FindActiveEntity(ctx context.Context, projectID string, t graph.NodeType, normalizedTitle string) (*graph.Entity, error)

	// RecordMention reinforces an existing entity: mention_count is
	// incremented (monotonically, never reset), last_seen_at is advanced,
	// and tags are merged as a set union. Title and status are untouched.
	RecordMention(ctx context.Context, projectID, id string, seenAt time.Time, tags []string) error

	// SetEntityStatus applies an explicit status transition.
	SetEntityStatus(ctx context.Context, projectID, id string, status graph.Status) error

	// ActiveGoals lists non-terminal goals ordered by priority descending,
	// then created_at ascending as a stable tie-break.
	ActiveGoals(ctx context.Context, projectID string) ([]*graph.Entity, error)

	// UpsertArtifact creates or refreshes a code artifact keyed by
	// (project, path, symbol_fqn). Upserting an unchanged content hash is a
	// no-op except for updated_at. Returns the stored artifact.
	UpsertArtifact(ctx context.Context, a *graph.CodeArtifact) (*graph.CodeArtifact, error)

	// GetArtifacts retrieves artifacts by id, skipping unresolved ids.
	GetArtifacts(ctx context.Context, projectID string, ids []string) ([]*graph.CodeArtifact, error)

	// ArtifactsByPaths resolves artifacts by exact path match.
	ArtifactsByPaths(ctx context.Context, projectID string, paths []string) ([]*graph.CodeArtifact, error)

	// ArtifactsBySymbols resolves artifacts by symbol FQN.
	ArtifactsBySymbols(ctx context.Context, projectID string, symbols []string) ([]*graph.CodeArtifact, error)

	// PutEdge stores a relationship edge. Edges are facts; storing the same
	// edge twice is a no-op.
	PutEdge(ctx context.Context, e graph.Edge) error

	// Neighbors returns all edges of the given types touching any of the
	// given node ids, in either direction. This is the one-hop primitive
	// the context-pack builder expands breadth-first.
	Neighbors(ctx context.Context, projectID string, ids []string, types []graph.EdgeType) ([]graph.Edge, error)

	// FulltextSearch queries the store's fulltext index over entity titles/
	// bodies and artifact paths/symbols. An empty types slice searches all
	// node types. Results are ordered by relevance descending, ties broken
	// by recency (last_seen_at/updated_at descending).
	FulltextSearch(ctx context.Context, projectID, query string, types []graph.NodeType, limit int) ([]SearchHit, error)

	// Close releases backend resources.
	Close() error
}

// SearchHit is a single fulltext match. Exactly one of Entity or Artifact
// is populated, according to Type.
type SearchHit struct {
	NodeID   string              `json:"node_id"`
	Type     graph.NodeType      `json:"type"`
	Score    float64             `json:"score"`
	Entity   *graph.Entity       `json:"entity,omitempty"`
	Artifact *graph.CodeArtifact `json:"artifact,omitempty"`
}
