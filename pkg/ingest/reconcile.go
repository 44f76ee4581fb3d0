package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

// Reconciler implements dedup-and-link: every candidate either merges into
// the one active node with the same normalized title or becomes a new node.
type Reconciler struct {
	store store.Driver
	locks *keyLock
	log   *zap.Logger
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(driver store.Driver, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		store: driver,
		locks: newKeyLock(),
		log:   log,
	}
}

// Reconcile finds or creates the entity for a candidate. Returns the entity
// id and whether a new node was created.
//
// Matching is exact on the normalized title among non-terminal nodes of the
// same type. A match merges: mention_count++, last_seen_at advanced, tags
// unioned; title and status are untouched. No match creates a fresh node
// with mention_count 1.
func (r *Reconciler) Reconcile(ctx context.Context, projectID string, t graph.NodeType, cand extract.Candidate, seenAt time.Time) (string, bool, error) {
	if !graph.IsEntityType(t) {
		return "", false, store.ValidationError{Field: "type", Reason: "not a dedupable entity type: " + string(t)}
	}

	normalized := graph.NormalizeTitle(cand.Title)
	if normalized == "" {
		return "", false, store.ValidationError{Field: "title", Reason: "empty after normalization"}
	}

	unlock := r.locks.lock(projectID + "\x00" + string(t) + "\x00" + normalized)
	defer unlock()

	id, created, err := r.findOrCreate(ctx, projectID, t, cand, normalized, seenAt)
	if err == nil {
		return id, created, nil
	}

	// Lost a cross-process race: another writer created the node between our
	// lookup and insert. Exactly one retry, merging into the winner.
	var conflict store.ConflictError
	if errors.As(err, &conflict) {
		r.log.Debug("dedup race lost, merging into winner",
			zap.String("project", projectID),
			zap.String("type", string(t)),
			zap.String("normalized_title", normalized),
		)

		existing, findErr := r.store.FindActiveEntity(ctx, projectID, t, normalized)
		if findErr != nil {
			return "", false, conflict
		}
		if mergeErr := r.store.RecordMention(ctx, projectID, existing.ID, seenAt, cand.Tags); mergeErr != nil {
			return "", false, mergeErr
		}
		return existing.ID, false, nil
	}

	return "", false, err
}

func (r *Reconciler) findOrCreate(ctx context.Context, projectID string, t graph.NodeType, cand extract.Candidate, normalized string, seenAt time.Time) (string, bool, error) {
	existing, err := r.store.FindActiveEntity(ctx, projectID, t, normalized)
	if err == nil {
		if err := r.store.RecordMention(ctx, projectID, existing.ID, seenAt, cand.Tags); err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}

	var notFound store.NotFoundError
	if !errors.As(err, &notFound) {
		return "", false, err
	}

	entity := &graph.Entity{
		ID:                 uuid.NewString(),
		ProjectID:          projectID,
		Type:               t,
		Title:              cand.Title,
		NormalizedTitle:    normalized,
		Body:               cand.Body,
		Status:             initialStatus(t),
		Priority:           cand.Priority,
		AcceptanceCriteria: cand.AcceptanceCriteria,
		Tags:               cand.Tags,
		MentionCount:       1,
		CreatedAt:          seenAt,
		LastSeenAt:         seenAt,
	}

	if err := r.store.CreateEntity(ctx, entity); err != nil {
		return "", false, err
	}

	return entity.ID, true, nil
}

// initialStatus picks the starting lifecycle state for a fresh node.
// PainPoints track open/resolved rather than active/completed.
func initialStatus(t graph.NodeType) graph.Status {
	if t == graph.TypePainPoint {
		return graph.StatusOpen
	}
	return graph.StatusActive
}
