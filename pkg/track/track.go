// Package track records code changes into the memory graph: artifact
// upserts for the changed paths, IMPLEMENTS links to the goals the change
// serves, and optionally an impact report for the same paths.
package track

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/impact"
	"github.com/papercomputeco/recall/pkg/store"
)

// Request describes one batch of changed files.
type Request struct {
	ProjectID    string   `json:"project_id"`
	ChangedPaths []string `json:"changed_paths"`

	// Summary is a short description of the change; stored on fresh
	// artifacts as provenance-free context is out of scope, it currently
	// informs logging only.
	Summary string `json:"summary,omitempty"`

	// RelatedGoalIDs selects the goals the change implements. nil means
	// "link every active goal"; an empty slice means "link nothing".
	RelatedGoalIDs []string `json:"related_goal_ids,omitempty"`

	// CheckImpact also runs impact analysis over the changed paths.
	CheckImpact bool `json:"check_impact,omitempty"`

	GitCommit string `json:"git_commit,omitempty"`
	Language  string `json:"language,omitempty"`
}

// GoalRef identifies one goal a change was linked to.
type GoalRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Result reports what was recorded. Per-path failures are skipped, not
// fatal, so ArtifactsLinked can be less than len(ChangedPaths).
type Result struct {
	ArtifactsLinked int            `json:"artifacts_linked"`
	LinkedPaths     []string       `json:"linked_paths"`
	AutoLinkedGoals []GoalRef      `json:"auto_linked_goals"`
	Impact          *impact.Report `json:"impact,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Tracker applies change-tracking requests to the graph.
type Tracker struct {
	store    store.Driver
	analyzer *impact.Analyzer
	log      *zap.Logger
	now      func() time.Time
}

// NewTracker creates a change tracker. The analyzer may be nil when impact
// analysis isn't wired; CheckImpact then reports nothing.
func NewTracker(driver store.Driver, analyzer *impact.Analyzer, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: driver, analyzer: analyzer, log: log, now: time.Now}
}

// TrackChanges upserts an artifact per changed path and links each one to
// the selected goals via IMPLEMENTS edges.
func (t *Tracker) TrackChanges(ctx context.Context, req Request) Result {
	result := Result{
		LinkedPaths:     []string{},
		AutoLinkedGoals: []GoalRef{},
	}

	if req.ProjectID == "" {
		result.Error = store.ValidationError{Field: "project_id", Reason: "required"}.Error()
		return result
	}
	if len(req.ChangedPaths) == 0 {
		result.Error = store.ValidationError{Field: "changed_paths", Reason: "at least one path is required"}.Error()
		return result
	}

	goals, err := t.resolveGoals(ctx, req)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	now := t.now().UTC()

	for _, path := range req.ChangedPaths {
		if path == "" {
			continue
		}

		language := req.Language
		if language == "" {
			language = graph.DetectLanguage(path)
		}

		stored, err := t.store.UpsertArtifact(ctx, &graph.CodeArtifact{
			ID:        uuid.NewString(),
			ProjectID: req.ProjectID,
			Path:      path,
			Kind:      graph.KindFile,
			Language:  language,
			GitCommit: req.GitCommit,
			UpdatedAt: now,
		})
		if err != nil {
			t.log.Warn("artifact upsert failed, path skipped",
				zap.String("project", req.ProjectID),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		linked := true
		for _, goal := range goals {
			if err := t.store.PutEdge(ctx, graph.Edge{
				ProjectID: req.ProjectID,
				SrcID:     stored.ID,
				DstID:     goal.ID,
				Type:      graph.EdgeImplements,
			}); err != nil {
				t.log.Warn("goal link failed",
					zap.String("path", path),
					zap.String("goal", goal.ID),
					zap.Error(err),
				)
				linked = false
			}
		}

		if linked {
			result.ArtifactsLinked++
			result.LinkedPaths = append(result.LinkedPaths, path)
		}
	}

	if req.RelatedGoalIDs == nil {
		for _, goal := range goals {
			result.AutoLinkedGoals = append(result.AutoLinkedGoals, GoalRef{ID: goal.ID, Title: goal.Title})
		}
	}

	if req.CheckImpact && t.analyzer != nil {
		report := t.analyzer.ForArtifacts(ctx, req.ProjectID, req.ChangedPaths, nil)
		result.Impact = &report
	}

	return result
}

// resolveGoals picks the link targets: all active goals when the caller
// didn't name any, else exactly the named ones.
func (t *Tracker) resolveGoals(ctx context.Context, req Request) ([]*graph.Entity, error) {
	if req.RelatedGoalIDs == nil {
		return t.store.ActiveGoals(ctx, req.ProjectID)
	}
	if len(req.RelatedGoalIDs) == 0 {
		return []*graph.Entity{}, nil
	}
	return t.store.GetEntities(ctx, req.ProjectID, req.RelatedGoalIDs)
}
