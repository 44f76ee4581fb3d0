// Package graph defines the memory-graph data model shared by the store,
// the ingestion pipeline, and the retrieval components.
//
// All nodes are scoped to a project and referenced by stable string ids,
// never by in-memory pointers, so cyclic relationships (Goal↔Strategy↔
// CodeArtifact) carry no ownership semantics.
package graph

import "time"

// NodeType identifies the kind of a graph node.
type NodeType string

const (
	TypeInteraction  NodeType = "Interaction"
	TypeGoal         NodeType = "Goal"
	TypeConstraint   NodeType = "Constraint"
	TypePreference   NodeType = "Preference"
	TypePainPoint    NodeType = "PainPoint"
	TypeStrategy     NodeType = "Strategy"
	TypeDecision     NodeType = "Decision"
	TypeCodeArtifact NodeType = "CodeArtifact"
)

// EntityTypes lists the node types that participate in dedup-and-link.
// Interactions are immutable provenance records and artifacts are keyed by
// path, so neither is reconciled by title.
func EntityTypes() []NodeType {
	return []NodeType{
		TypeGoal,
		TypeConstraint,
		TypePreference,
		TypePainPoint,
		TypeStrategy,
		TypeDecision,
	}
}

// IsEntityType reports whether t is a dedupable entity type.
func IsEntityType(t NodeType) bool {
	for _, et := range EntityTypes() {
		if t == et {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an entity node.
type Status string

const (
	StatusActive     Status = "active"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusSuperseded Status = "superseded"

	// PainPoint-specific states.
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Terminal reports whether the status ends an entity's active life.
// Dedup matches only non-terminal nodes; a completed goal re-observed under
// the same title becomes a fresh node.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSuperseded, StatusResolved:
		return true
	}
	return false
}

// EdgeType identifies the kind of a relationship edge.
type EdgeType string

const (
	// EdgeDerivedFrom links an entity to the interaction that produced or
	// reinforced it (entity → Interaction).
	EdgeDerivedFrom EdgeType = "DERIVED_FROM"

	// EdgeImplements links a code artifact to a goal it implements
	// (CodeArtifact → Goal).
	EdgeImplements EdgeType = "IMPLEMENTS"

	// EdgeRelatesTo is a generic entity-to-entity association.
	EdgeRelatesTo EdgeType = "RELATES_TO"

	// EdgeSupersedes records that one entity replaced another.
	EdgeSupersedes EdgeType = "SUPERSEDES"
)

// Edge is a directed relationship between two nodes. Edges are facts keyed
// by (project, src, dst, type); they have no independent lifecycle.
type Edge struct {
	ProjectID string   `json:"project_id"`
	SrcID     string   `json:"src_id"`
	DstID     string   `json:"dst_id"`
	Type      EdgeType `json:"type"`
}

// Interaction is the immutable provenance record of one user/agent exchange.
// It is created once per ingest call and never mutated or deduplicated.
type Interaction struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	RawText   string    `json:"raw_text"`
	Files     []string  `json:"files,omitempty"`
	Diff      string    `json:"diff,omitempty"`
	Symbols   []string  `json:"symbols,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Entity is a dedupable concept node (Goal, Constraint, Preference,
// PainPoint, Strategy, Decision). Within a project at most one non-terminal
// entity of a given type may share a normalized title.
type Entity struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	Type               NodeType  `json:"type"`
	Title              string    `json:"title"`
	NormalizedTitle    string    `json:"normalized_title"`
	Body               string    `json:"body,omitempty"`
	Status             Status    `json:"status"`
	Priority           int       `json:"priority,omitempty"`
	AcceptanceCriteria []string  `json:"acceptance_criteria,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	MentionCount       int       `json:"mention_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastSeenAt         time.Time `json:"last_seen_at"`
}

// ArtifactKind classifies a code artifact.
type ArtifactKind string

const (
	KindFile     ArtifactKind = "file"
	KindFunction ArtifactKind = "function"
	KindClass    ArtifactKind = "class"
	KindSnippet  ArtifactKind = "snippet"
)

// CodeArtifact is a tracked piece of code, unique per
// (project, path, symbol_fqn). It is refreshed on every track-changes call;
// re-upserting an unchanged content hash only bumps UpdatedAt.
type CodeArtifact struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Path        string       `json:"path"`
	Kind        ArtifactKind `json:"kind"`
	Language    string       `json:"language,omitempty"`
	SymbolFQN   string       `json:"symbol_fqn,omitempty"`
	StartLine   int          `json:"start_line,omitempty"`
	EndLine     int          `json:"end_line,omitempty"`
	GitCommit   string       `json:"git_commit,omitempty"`
	ContentHash string       `json:"content_hash,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
