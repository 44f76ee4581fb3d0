package ingest

import (
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/graph"
)

// Request is one raw agent/user exchange submitted for ingestion.
type Request struct {
	ProjectID string   `json:"project_id"`
	RawText   string   `json:"raw_text"`
	Files     []string `json:"files,omitempty"`
	Diff      string   `json:"diff,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// EntityResult reports one entity touched by the ingest and whether it was
// freshly created or merged into an existing node.
type EntityResult struct {
	ID      string         `json:"id"`
	Type    graph.NodeType `json:"type"`
	Title   string         `json:"title"`
	Created bool           `json:"created"`
}

// CandidateError records a single candidate that could not be reconciled.
// The rest of the ingest proceeds around it.
type CandidateError struct {
	Type  graph.NodeType `json:"type"`
	Title string         `json:"title"`
	Error string         `json:"error"`
}

// Result is the structured outcome of one ProcessMessage call. It is always
// returned, never replaced by a raised error: a failed extraction or a
// partially failed reconcile produces a degraded Result with the interaction
// already persisted.
type Result struct {
	InteractionID string `json:"interaction_id,omitempty"`

	// Extracted is the extractor's raw output, grouped by category, before
	// any dedup or reconciliation. Nil when extraction was skipped, failed,
	// or produced nothing.
	Extracted *extract.Extraction `json:"extracted,omitempty"`

	Entities      []EntityResult   `json:"entities"`
	Confidence    float64          `json:"confidence"`
	Degraded      bool             `json:"degraded"`
	DegradedInfo  string           `json:"degraded_info,omitempty"`
	Errors        []CandidateError `json:"errors,omitempty"`

	// Error is set only when the ingest could not record anything at all,
	// e.g. invalid input or the interaction insert itself failing.
	Error string `json:"error,omitempty"`
}
