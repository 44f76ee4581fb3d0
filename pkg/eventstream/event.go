package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeIngested is emitted after an interaction is ingested into the
	// memory graph.
	EventTypeIngested = "recall.interaction.ingested"
)

// IngestEvent is a transport-neutral event payload for one completed ingest.
type IngestEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	ProjectID     string        `json:"project_id"`
	InteractionID string        `json:"interaction_id"`
	Entities      []EventEntity `json:"entities,omitempty"`
	Degraded      bool          `json:"degraded"`
}

// EventEntity identifies one entity touched by the ingest.
type EventEntity struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Created bool   `json:"created"`
}
