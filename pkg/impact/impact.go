// Package impact answers "if I change this code, what does it touch?" by
// walking artifact → goal → strategy/decision edges.
package impact

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

// Report is the outcome of one impact analysis. All four lists are non-nil
// and deduplicated; adding inputs can only grow them.
type Report struct {
	GoalsAffected      []*graph.Entity `json:"goals_to_retest"`
	StrategiesAffected []*graph.Entity `json:"strategies_to_review"`
	TestsToRun         []string        `json:"tests_to_run"`
	ArtifactsRelated   []string        `json:"artifacts_related"`

	// Error carries a validation or store failure; the lists stay usable.
	Error string `json:"error,omitempty"`
}

// Analyzer computes impact reports from the graph store.
type Analyzer struct {
	store store.Driver
	log   *zap.Logger
}

// NewAnalyzer creates an impact analyzer.
func NewAnalyzer(driver store.Driver, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{store: driver, log: log}
}

// ForArtifacts analyzes the blast radius of changing the given paths and/or
// symbols. At least one of the two must be non-empty.
//
// The walk: inputs resolve to artifacts; IMPLEMENTS edges from those
// artifacts name the affected goals; RELATES_TO neighbors of those goals
// contribute strategies and decisions; and every other artifact implementing
// an affected goal is a sibling, partitioned into tests to run (test-looking
// paths) and related artifacts.
func (a *Analyzer) ForArtifacts(ctx context.Context, projectID string, paths, symbols []string) Report {
	report := Report{
		GoalsAffected:      []*graph.Entity{},
		StrategiesAffected: []*graph.Entity{},
		TestsToRun:         []string{},
		ArtifactsRelated:   []string{},
	}

	if projectID == "" {
		report.Error = store.ValidationError{Field: "project_id", Reason: "required"}.Error()
		return report
	}
	if len(paths) == 0 && len(symbols) == 0 {
		report.Error = store.ValidationError{Field: "paths/symbols", Reason: "at least one path or symbol is required"}.Error()
		return report
	}

	changed, err := a.resolveArtifacts(ctx, projectID, paths, symbols)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if len(changed) == 0 {
		return report
	}

	changedIDs := make([]string, 0, len(changed))
	changedSet := make(map[string]bool, len(changed))
	for _, art := range changed {
		changedIDs = append(changedIDs, art.ID)
		changedSet[art.ID] = true
	}

	// Changed artifacts → goals they implement.
	implementsEdges, err := a.store.Neighbors(ctx, projectID, changedIDs, []graph.EdgeType{graph.EdgeImplements})
	if err != nil {
		report.Error = err.Error()
		return report
	}

	goalIDs := []string{}
	goalSet := map[string]bool{}
	for _, e := range implementsEdges {
		// IMPLEMENTS points artifact → goal; the goal is whichever end
		// isn't one of ours.
		if changedSet[e.SrcID] && !goalSet[e.DstID] {
			goalSet[e.DstID] = true
			goalIDs = append(goalIDs, e.DstID)
		}
	}

	goals, err := a.store.GetEntities(ctx, projectID, goalIDs)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	for _, g := range goals {
		if g.Type == graph.TypeGoal {
			report.GoalsAffected = append(report.GoalsAffected, g)
		}
	}

	if len(report.GoalsAffected) == 0 {
		return report
	}

	affectedGoalIDs := make([]string, 0, len(report.GoalsAffected))
	affectedGoalSet := make(map[string]bool, len(report.GoalsAffected))
	for _, g := range report.GoalsAffected {
		affectedGoalIDs = append(affectedGoalIDs, g.ID)
		affectedGoalSet[g.ID] = true
	}

	a.collectStrategies(ctx, projectID, affectedGoalIDs, affectedGoalSet, &report)
	a.collectSiblings(ctx, projectID, affectedGoalIDs, changedSet, &report)

	sortEntities(report.GoalsAffected)
	sortEntities(report.StrategiesAffected)
	sort.Strings(report.TestsToRun)
	sort.Strings(report.ArtifactsRelated)

	return report
}

func (a *Analyzer) resolveArtifacts(ctx context.Context, projectID string, paths, symbols []string) ([]*graph.CodeArtifact, error) {
	var out []*graph.CodeArtifact
	seen := map[string]bool{}

	if len(paths) > 0 {
		byPath, err := a.store.ArtifactsByPaths(ctx, projectID, paths)
		if err != nil {
			return nil, err
		}
		for _, art := range byPath {
			if !seen[art.ID] {
				seen[art.ID] = true
				out = append(out, art)
			}
		}
	}

	if len(symbols) > 0 {
		bySymbol, err := a.store.ArtifactsBySymbols(ctx, projectID, symbols)
		if err != nil {
			return nil, err
		}
		for _, art := range bySymbol {
			if !seen[art.ID] {
				seen[art.ID] = true
				out = append(out, art)
			}
		}
	}

	return out, nil
}

// collectStrategies adds strategies and decisions related to the affected
// goals. A store failure here degrades the report, not the goal list.
func (a *Analyzer) collectStrategies(ctx context.Context, projectID string, goalIDs []string, goalSet map[string]bool, report *Report) {
	edges, err := a.store.Neighbors(ctx, projectID, goalIDs, []graph.EdgeType{graph.EdgeRelatesTo})
	if err != nil {
		a.log.Warn("strategy expansion failed", zap.Error(err))
		report.Error = err.Error()
		return
	}

	var relatedIDs []string
	relatedSet := map[string]bool{}
	for _, e := range edges {
		for _, id := range []string{e.SrcID, e.DstID} {
			if !goalSet[id] && !relatedSet[id] {
				relatedSet[id] = true
				relatedIDs = append(relatedIDs, id)
			}
		}
	}

	related, err := a.store.GetEntities(ctx, projectID, relatedIDs)
	if err != nil {
		a.log.Warn("strategy lookup failed", zap.Error(err))
		report.Error = err.Error()
		return
	}

	for _, e := range related {
		if e.Type == graph.TypeStrategy || e.Type == graph.TypeDecision {
			report.StrategiesAffected = append(report.StrategiesAffected, e)
		}
	}
}

// collectSiblings finds the other artifacts implementing the affected goals
// and partitions them by path shape.
func (a *Analyzer) collectSiblings(ctx context.Context, projectID string, goalIDs []string, changedSet map[string]bool, report *Report) {
	edges, err := a.store.Neighbors(ctx, projectID, goalIDs, []graph.EdgeType{graph.EdgeImplements})
	if err != nil {
		a.log.Warn("sibling expansion failed", zap.Error(err))
		report.Error = err.Error()
		return
	}

	var siblingIDs []string
	siblingSet := map[string]bool{}
	for _, e := range edges {
		if !changedSet[e.SrcID] && !siblingSet[e.SrcID] {
			siblingSet[e.SrcID] = true
			siblingIDs = append(siblingIDs, e.SrcID)
		}
	}

	siblings, err := a.store.GetArtifacts(ctx, projectID, siblingIDs)
	if err != nil {
		a.log.Warn("sibling lookup failed", zap.Error(err))
		report.Error = err.Error()
		return
	}

	testSeen := map[string]bool{}
	relatedSeen := map[string]bool{}
	for _, art := range siblings {
		if graph.IsTestPath(art.Path) {
			if !testSeen[art.Path] {
				testSeen[art.Path] = true
				report.TestsToRun = append(report.TestsToRun, art.Path)
			}
		} else if !relatedSeen[art.Path] {
			relatedSeen[art.Path] = true
			report.ArtifactsRelated = append(report.ArtifactsRelated, art.Path)
		}
	}
}

func sortEntities(entities []*graph.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Title != entities[j].Title {
			return entities[i].Title < entities[j].Title
		}
		return entities[i].ID < entities[j].ID
	})
}
