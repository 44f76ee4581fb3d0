package testutils

import (
	"context"
	"errors"
	"time"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

// ErrStoreDown is the failure injected by FlakyStore toggles.
var ErrStoreDown = errors.New("store down")

// FlakyStore wraps a real driver and injects failures per method, for
// exercising degraded paths without a broken backend.
type FlakyStore struct {
	Inner store.Driver

	FailPutInteraction bool
	FailCreateEntity   bool
	FailRecordMention  bool
	FailPutEdge        bool
	FailNeighbors      bool
	FailUpsertArtifact bool
	FailSearch         bool
}

// NewFlakyStore wraps the given driver with no failures armed.
func NewFlakyStore(inner store.Driver) *FlakyStore {
	return &FlakyStore{Inner: inner}
}

func (f *FlakyStore) PutInteraction(ctx context.Context, in *graph.Interaction) error {
	if f.FailPutInteraction {
		return store.UnavailableError{Op: "put interaction", Err: ErrStoreDown}
	}
	return f.Inner.PutInteraction(ctx, in)
}

func (f *FlakyStore) GetInteraction(ctx context.Context, projectID, id string) (*graph.Interaction, error) {
	return f.Inner.GetInteraction(ctx, projectID, id)
}

func (f *FlakyStore) CreateEntity(ctx context.Context, e *graph.Entity) error {
	if f.FailCreateEntity {
		return store.UnavailableError{Op: "create entity", Err: ErrStoreDown}
	}
	return f.Inner.CreateEntity(ctx, e)
}

func (f *FlakyStore) GetEntity(ctx context.Context, projectID, id string) (*graph.Entity, error) {
	return f.Inner.GetEntity(ctx, projectID, id)
}

func (f *FlakyStore) GetEntities(ctx context.Context, projectID string, ids []string) ([]*graph.Entity, error) {
	return f.Inner.GetEntities(ctx, projectID, ids)
}

func (f *FlakyStore) FindActiveEntity(ctx context.Context, projectID string, t graph.NodeType, normalizedTitle string) (*graph.Entity, error) {
	return f.Inner.FindActiveEntity(ctx, projectID, t, normalizedTitle)
}

func (f *FlakyStore) RecordMention(ctx context.Context, projectID, id string, seenAt time.Time, tags []string) error {
	if f.FailRecordMention {
		return store.UnavailableError{Op: "record mention", Err: ErrStoreDown}
	}
	return f.Inner.RecordMention(ctx, projectID, id, seenAt, tags)
}

func (f *FlakyStore) SetEntityStatus(ctx context.Context, projectID, id string, status graph.Status) error {
	return f.Inner.SetEntityStatus(ctx, projectID, id, status)
}

func (f *FlakyStore) ActiveGoals(ctx context.Context, projectID string) ([]*graph.Entity, error) {
	return f.Inner.ActiveGoals(ctx, projectID)
}

func (f *FlakyStore) UpsertArtifact(ctx context.Context, a *graph.CodeArtifact) (*graph.CodeArtifact, error) {
	if f.FailUpsertArtifact {
		return nil, store.UnavailableError{Op: "upsert artifact", Err: ErrStoreDown}
	}
	return f.Inner.UpsertArtifact(ctx, a)
}

func (f *FlakyStore) GetArtifacts(ctx context.Context, projectID string, ids []string) ([]*graph.CodeArtifact, error) {
	return f.Inner.GetArtifacts(ctx, projectID, ids)
}

func (f *FlakyStore) ArtifactsByPaths(ctx context.Context, projectID string, paths []string) ([]*graph.CodeArtifact, error) {
	return f.Inner.ArtifactsByPaths(ctx, projectID, paths)
}

func (f *FlakyStore) ArtifactsBySymbols(ctx context.Context, projectID string, symbols []string) ([]*graph.CodeArtifact, error) {
	return f.Inner.ArtifactsBySymbols(ctx, projectID, symbols)
}

func (f *FlakyStore) PutEdge(ctx context.Context, e graph.Edge) error {
	if f.FailPutEdge {
		return store.UnavailableError{Op: "put edge", Err: ErrStoreDown}
	}
	return f.Inner.PutEdge(ctx, e)
}

func (f *FlakyStore) Neighbors(ctx context.Context, projectID string, ids []string, types []graph.EdgeType) ([]graph.Edge, error) {
	if f.FailNeighbors {
		return nil, store.UnavailableError{Op: "neighbors", Err: ErrStoreDown}
	}
	return f.Inner.Neighbors(ctx, projectID, ids, types)
}

func (f *FlakyStore) FulltextSearch(ctx context.Context, projectID, query string, types []graph.NodeType, limit int) ([]store.SearchHit, error) {
	if f.FailSearch {
		return nil, store.UnavailableError{Op: "fulltext search", Err: ErrStoreDown}
	}
	return f.Inner.FulltextSearch(ctx, projectID, query, types, limit)
}

func (f *FlakyStore) Close() error {
	return f.Inner.Close()
}

// Ensure FlakyStore implements store.Driver
var _ store.Driver = (*FlakyStore)(nil)
