// Package inmemory provides a map-backed graph store driver for tests and
// for running the server without a configured database path.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

// Driver implements store.Driver using in-process maps guarded by a RWMutex.
// Fulltext search is a naive case-insensitive substring match, good enough
// for tests; real deployments use the sqlite or postgres drivers.
type Driver struct {
	mu sync.RWMutex

	interactions map[string]*graph.Interaction
	entities     map[string]*graph.Entity
	artifacts    map[string]*graph.CodeArtifact
	edges        map[graph.Edge]bool
}

// NewDriver creates an empty in-memory graph store.
func NewDriver() *Driver {
	return &Driver{
		interactions: make(map[string]*graph.Interaction),
		entities:     make(map[string]*graph.Entity),
		artifacts:    make(map[string]*graph.CodeArtifact),
		edges:        make(map[graph.Edge]bool),
	}
}

// PutInteraction stores an immutable interaction record.
func (d *Driver) PutInteraction(_ context.Context, in *graph.Interaction) error {
	if in == nil {
		return store.ValidationError{Field: "interaction", Reason: "nil"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cp := *in
	d.interactions[in.ID] = &cp
	return nil
}

// GetInteraction retrieves an interaction by id.
func (d *Driver) GetInteraction(_ context.Context, projectID, id string) (*graph.Interaction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	in, ok := d.interactions[id]
	if !ok || in.ProjectID != projectID {
		return nil, store.NotFoundError{Kind: "interaction", Key: id}
	}

	cp := *in
	return &cp, nil
}

// CreateEntity inserts a new entity, enforcing the one-active-node-per-
// concept invariant under the write lock.
func (d *Driver) CreateEntity(_ context.Context, e *graph.Entity) error {
	if e == nil {
		return store.ValidationError{Field: "entity", Reason: "nil"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.entities {
		if existing.ProjectID == e.ProjectID &&
			existing.Type == e.Type &&
			existing.NormalizedTitle == e.NormalizedTitle &&
			!existing.Status.Terminal() {
			return store.ConflictError{Key: e.ProjectID + "/" + string(e.Type) + "/" + e.NormalizedTitle}
		}
	}

	cp := *e
	d.entities[e.ID] = &cp
	return nil
}

// GetEntity retrieves an entity by id.
func (d *Driver) GetEntity(ctx context.Context, projectID, id string) (*graph.Entity, error) {
	entities, err := d.GetEntities(ctx, projectID, []string{id})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, store.NotFoundError{Kind: "entity", Key: id}
	}
	return entities[0], nil
}

// GetEntities retrieves entities by id, skipping unresolved ids.
func (d *Driver) GetEntities(_ context.Context, projectID string, ids []string) ([]*graph.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entities := []*graph.Entity{}
	for _, id := range ids {
		if e, ok := d.entities[id]; ok && e.ProjectID == projectID {
			cp := *e
			entities = append(entities, &cp)
		}
	}

	return entities, nil
}

// FindActiveEntity finds the non-terminal entity matching the normalized title.
func (d *Driver) FindActiveEntity(_ context.Context, projectID string, t graph.NodeType, normalizedTitle string) (*graph.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.entities {
		if e.ProjectID == projectID && e.Type == t &&
			e.NormalizedTitle == normalizedTitle && !e.Status.Terminal() {
			cp := *e
			return &cp, nil
		}
	}

	return nil, store.NotFoundError{Kind: "entity", Key: normalizedTitle}
}

// RecordMention reinforces an entity: mention_count++, last_seen_at advance,
// tag union.
func (d *Driver) RecordMention(_ context.Context, projectID, id string, seenAt time.Time, tags []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entities[id]
	if !ok || e.ProjectID != projectID {
		return store.NotFoundError{Kind: "entity", Key: id}
	}

	e.MentionCount++
	if seenAt.After(e.LastSeenAt) {
		e.LastSeenAt = seenAt
	}
	e.Tags = mergeTags(e.Tags, tags)

	return nil
}

// SetEntityStatus applies an explicit status transition.
func (d *Driver) SetEntityStatus(_ context.Context, projectID, id string, status graph.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entities[id]
	if !ok || e.ProjectID != projectID {
		return store.NotFoundError{Kind: "entity", Key: id}
	}

	e.Status = status
	return nil
}

// ActiveGoals lists non-terminal goals, priority descending then created_at
// ascending.
func (d *Driver) ActiveGoals(_ context.Context, projectID string) ([]*graph.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	goals := []*graph.Entity{}
	for _, e := range d.entities {
		if e.ProjectID == projectID && e.Type == graph.TypeGoal && !e.Status.Terminal() {
			cp := *e
			goals = append(goals, &cp)
		}
	}

	sort.SliceStable(goals, func(i, j int) bool {
		if goals[i].Priority != goals[j].Priority {
			return goals[i].Priority > goals[j].Priority
		}
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})

	return goals, nil
}

// UpsertArtifact creates or refreshes an artifact keyed by
// (project, path, symbol_fqn) under the write lock.
func (d *Driver) UpsertArtifact(_ context.Context, a *graph.CodeArtifact) (*graph.CodeArtifact, error) {
	if a == nil {
		return nil, store.ValidationError{Field: "artifact", Reason: "nil"}
	}
	if a.Path == "" {
		return nil, store.ValidationError{Field: "path", Reason: "required"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.artifacts {
		if existing.ProjectID == a.ProjectID && existing.Path == a.Path && existing.SymbolFQN == a.SymbolFQN {
			existing.Kind = a.Kind
			if a.Language != "" {
				existing.Language = a.Language
			}
			existing.StartLine = a.StartLine
			existing.EndLine = a.EndLine
			if a.GitCommit != "" {
				existing.GitCommit = a.GitCommit
			}
			if a.ContentHash != "" {
				existing.ContentHash = a.ContentHash
			}
			existing.UpdatedAt = a.UpdatedAt

			cp := *existing
			return &cp, nil
		}
	}

	cp := *a
	d.artifacts[a.ID] = &cp

	out := cp
	return &out, nil
}

// GetArtifacts retrieves artifacts by id, skipping unresolved ids.
func (d *Driver) GetArtifacts(_ context.Context, projectID string, ids []string) ([]*graph.CodeArtifact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	artifacts := []*graph.CodeArtifact{}
	for _, id := range ids {
		if a, ok := d.artifacts[id]; ok && a.ProjectID == projectID {
			cp := *a
			artifacts = append(artifacts, &cp)
		}
	}

	return artifacts, nil
}

// ArtifactsByPaths resolves artifacts by exact path match.
func (d *Driver) ArtifactsByPaths(_ context.Context, projectID string, paths []string) ([]*graph.CodeArtifact, error) {
	return d.artifactsWhere(projectID, func(a *graph.CodeArtifact) string { return a.Path }, paths), nil
}

// ArtifactsBySymbols resolves artifacts by symbol FQN.
func (d *Driver) ArtifactsBySymbols(_ context.Context, projectID string, symbols []string) ([]*graph.CodeArtifact, error) {
	return d.artifactsWhere(projectID, func(a *graph.CodeArtifact) string { return a.SymbolFQN }, symbols), nil
}

func (d *Driver) artifactsWhere(projectID string, key func(*graph.CodeArtifact) string, values []string) []*graph.CodeArtifact {
	d.mu.RLock()
	defer d.mu.RUnlock()

	want := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			want[v] = true
		}
	}

	artifacts := []*graph.CodeArtifact{}
	for _, a := range d.artifacts {
		if a.ProjectID == projectID && want[key(a)] {
			cp := *a
			artifacts = append(artifacts, &cp)
		}
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].ID < artifacts[j].ID })
	return artifacts
}

// PutEdge stores an edge idempotently.
func (d *Driver) PutEdge(_ context.Context, e graph.Edge) error {
	if e.SrcID == "" || e.DstID == "" {
		return store.ValidationError{Field: "edge", Reason: "src and dst required"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.edges[e] = true
	return nil
}

// Neighbors returns edges of the given types touching any of the ids in
// either direction.
func (d *Driver) Neighbors(_ context.Context, projectID string, ids []string, types []graph.EdgeType) ([]graph.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	typeSet := make(map[graph.EdgeType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	edges := []graph.Edge{}
	for e := range d.edges {
		if e.ProjectID != projectID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[e.Type] {
			continue
		}
		if idSet[e.SrcID] || idSet[e.DstID] {
			edges = append(edges, e)
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SrcID != edges[j].SrcID {
			return edges[i].SrcID < edges[j].SrcID
		}
		if edges[i].DstID != edges[j].DstID {
			return edges[i].DstID < edges[j].DstID
		}
		return edges[i].Type < edges[j].Type
	})

	return edges, nil
}

// FulltextSearch matches the query case-insensitively against entity titles/
// bodies and artifact paths/symbols. Score is the number of matching terms.
func (d *Driver) FulltextSearch(_ context.Context, projectID, query string, types []graph.NodeType, limit int) ([]store.SearchHit, error) {
	if limit <= 0 {
		return nil, store.ValidationError{Field: "limit", Reason: "must be positive"}
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []store.SearchHit{}, nil
	}

	wantType := func(t graph.NodeType) bool {
		if len(types) == 0 {
			return true
		}
		for _, want := range types {
			if want == t {
				return true
			}
		}
		return false
	}

	score := func(text string) float64 {
		text = strings.ToLower(text)
		n := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				n++
			}
		}
		if n < len(terms) {
			return 0 // all terms must match
		}
		return float64(n)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	hits := []store.SearchHit{}

	for _, e := range d.entities {
		if e.ProjectID != projectID || !wantType(e.Type) {
			continue
		}
		if s := score(e.Title + " " + e.Body); s > 0 {
			cp := *e
			hits = append(hits, store.SearchHit{NodeID: e.ID, Type: e.Type, Score: s, Entity: &cp})
		}
	}

	for _, a := range d.artifacts {
		if a.ProjectID != projectID || !wantType(graph.TypeCodeArtifact) {
			continue
		}
		if s := score(a.Path + " " + a.SymbolFQN); s > 0 {
			cp := *a
			hits = append(hits, store.SearchHit{NodeID: a.ID, Type: graph.TypeCodeArtifact, Score: s, Artifact: &cp})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := hitTime(hits[i]), hitTime(hits[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].NodeID < hits[j].NodeID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func hitTime(h store.SearchHit) time.Time {
	if h.Entity != nil {
		return h.Entity.LastSeenAt
	}
	if h.Artifact != nil {
		return h.Artifact.UpdatedAt
	}
	return time.Time{}
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))

	for _, t := range existing {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range incoming {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}

	sort.Strings(merged)
	return merged
}

// Ensure Driver implements store.Driver
var _ store.Driver = (*Driver)(nil)
