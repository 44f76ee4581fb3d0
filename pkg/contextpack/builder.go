// Package contextpack assembles the "what should the agent know right now"
// view of a project: seed nodes, a bounded breadth-first expansion over the
// graph, and a deterministic markdown rendering.
package contextpack

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

const (
	// DefaultMaxNodes is the hard node budget for one pack.
	DefaultMaxNodes = 200

	// DefaultKHops is the expansion depth when the caller doesn't choose.
	DefaultKHops = 2

	// MinKHops and MaxKHops bound the caller-supplied depth.
	MinKHops = 1
	MaxKHops = 5

	searchSeedLimit = 10
)

// Request selects what to build a pack around.
type Request struct {
	ProjectID string `json:"project_id"`

	// FocusGoalID narrows the pack to one goal's neighborhood. Empty means
	// seed from all active goals.
	FocusGoalID string `json:"focus_goal_id,omitempty"`

	// Query, when set, unions fulltext hits into the seed set.
	Query string `json:"query,omitempty"`

	// KHops is the BFS depth, 1 to 5. Zero means default; any other value
	// outside the range is a validation error.
	KHops int `json:"k_hops,omitempty"`
}

// Pack is the assembled context. Section slices are always non-nil and
// deterministically ordered.
type Pack struct {
	ProjectID   string                `json:"project_id"`
	Goals       []*graph.Entity       `json:"goals"`
	Constraints []*graph.Entity       `json:"constraints"`
	Preferences []*graph.Entity       `json:"preferences"`
	PainPoints  []*graph.Entity       `json:"pain_points"`
	Artifacts   []*graph.CodeArtifact `json:"artifacts"`
	Strategies  []*graph.Entity       `json:"strategies"`
	Decisions   []*graph.Entity       `json:"decisions"`

	// Truncated is set when the node budget stopped the expansion early.
	Truncated bool `json:"truncated"`

	// Errors lists what went wrong while building. A non-empty list means
	// the pack is partial, not absent.
	Errors []string `json:"errors,omitempty"`
}

// Builder builds context packs from the graph store.
type Builder struct {
	store    store.Driver
	log      *zap.Logger
	maxNodes int
}

// NewBuilder creates a pack builder. maxNodes <= 0 uses DefaultMaxNodes.
func NewBuilder(driver store.Driver, log *zap.Logger, maxNodes int) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Builder{store: driver, log: log, maxNodes: maxNodes}
}

// Build assembles a pack. Store failures mid-build degrade the pack (error
// entries plus whatever was gathered) rather than aborting it.
func (b *Builder) Build(ctx context.Context, req Request) Pack {
	pack := emptyPack(req.ProjectID)

	if req.ProjectID == "" {
		pack.Errors = append(pack.Errors, store.ValidationError{Field: "project_id", Reason: "required"}.Error())
		return pack
	}

	khops := req.KHops
	if khops == 0 {
		khops = DefaultKHops
	} else if khops < MinKHops || khops > MaxKHops {
		pack.Errors = append(pack.Errors, store.ValidationError{Field: "k_hops", Reason: "must be between 1 and 5"}.Error())
		return pack
	}

	seeds := b.collectSeeds(ctx, req, &pack)
	if len(seeds) == 0 {
		return pack
	}

	visited := b.expand(ctx, req.ProjectID, seeds, khops, &pack)

	b.fillSections(ctx, req.ProjectID, visited, &pack)

	return pack
}

// collectSeeds resolves the starting node set: the focus goal or all active
// goals, unioned with fulltext hits when a query is given.
func (b *Builder) collectSeeds(ctx context.Context, req Request, pack *Pack) []string {
	seedSet := map[string]bool{}
	var seeds []string

	add := func(id string) {
		if id != "" && !seedSet[id] {
			seedSet[id] = true
			seeds = append(seeds, id)
		}
	}

	if req.FocusGoalID != "" {
		goal, err := b.store.GetEntity(ctx, req.ProjectID, req.FocusGoalID)
		if err != nil {
			var notFound store.NotFoundError
			if errors.As(err, &notFound) {
				pack.Errors = append(pack.Errors, "focus goal not found: "+req.FocusGoalID)
			} else {
				pack.Errors = append(pack.Errors, err.Error())
			}
		} else {
			add(goal.ID)
		}
	}

	if len(seeds) == 0 {
		goals, err := b.store.ActiveGoals(ctx, req.ProjectID)
		if err != nil {
			pack.Errors = append(pack.Errors, err.Error())
		}
		for _, g := range goals {
			add(g.ID)
		}
	}

	if req.Query != "" {
		hits, err := b.store.FulltextSearch(ctx, req.ProjectID, req.Query, nil, searchSeedLimit)
		if err != nil {
			pack.Errors = append(pack.Errors, err.Error())
		}
		for _, h := range hits {
			add(h.NodeID)
		}
	}

	if len(seeds) > b.maxNodes {
		seeds = seeds[:b.maxNodes]
		pack.Truncated = true
	}

	return seeds
}

var packEdgeTypes = []graph.EdgeType{
	graph.EdgeRelatesTo,
	graph.EdgeDerivedFrom,
	graph.EdgeImplements,
}

// expand runs the bounded BFS and returns every visited node id. Stops at
// the hop limit or the node budget, whichever comes first.
func (b *Builder) expand(ctx context.Context, projectID string, seeds []string, khops int, pack *Pack) []string {
	visited := make(map[string]bool, len(seeds))
	order := make([]string, 0, len(seeds))
	for _, id := range seeds {
		visited[id] = true
		order = append(order, id)
	}

	frontier := seeds
	for hop := 0; hop < khops && len(frontier) > 0; hop++ {
		edges, err := b.store.Neighbors(ctx, projectID, frontier, packEdgeTypes)
		if err != nil {
			b.log.Warn("pack expansion failed", zap.Int("hop", hop+1), zap.Error(err))
			pack.Errors = append(pack.Errors, err.Error())
			break
		}

		var next []string
		for _, e := range edges {
			for _, id := range []string{e.SrcID, e.DstID} {
				if visited[id] {
					continue
				}
				if len(order) >= b.maxNodes {
					pack.Truncated = true
					return order
				}
				visited[id] = true
				order = append(order, id)
				next = append(next, id)
			}
		}

		frontier = next
	}

	return order
}

// fillSections resolves visited ids into typed nodes and sorts each section.
// Ids that resolve to interactions simply don't land in any section; they
// participate in connectivity only.
func (b *Builder) fillSections(ctx context.Context, projectID string, ids []string, pack *Pack) {
	entities, err := b.store.GetEntities(ctx, projectID, ids)
	if err != nil {
		pack.Errors = append(pack.Errors, err.Error())
	}

	artifacts, err := b.store.GetArtifacts(ctx, projectID, ids)
	if err != nil {
		pack.Errors = append(pack.Errors, err.Error())
	}

	for _, e := range entities {
		switch e.Type {
		case graph.TypeGoal:
			pack.Goals = append(pack.Goals, e)
		case graph.TypeConstraint:
			pack.Constraints = append(pack.Constraints, e)
		case graph.TypePreference:
			pack.Preferences = append(pack.Preferences, e)
		case graph.TypePainPoint:
			if !e.Status.Terminal() {
				pack.PainPoints = append(pack.PainPoints, e)
			}
		case graph.TypeStrategy:
			pack.Strategies = append(pack.Strategies, e)
		case graph.TypeDecision:
			pack.Decisions = append(pack.Decisions, e)
		}
	}

	pack.Artifacts = append(pack.Artifacts, artifacts...)

	sortGoals(pack.Goals)
	sortByMentions(pack.Constraints)
	sortByMentions(pack.Preferences)
	sortByMentions(pack.PainPoints)
	sortByMentions(pack.Strategies)
	sortByMentions(pack.Decisions)
	sort.Slice(pack.Artifacts, func(i, j int) bool {
		if pack.Artifacts[i].Path != pack.Artifacts[j].Path {
			return pack.Artifacts[i].Path < pack.Artifacts[j].Path
		}
		return pack.Artifacts[i].SymbolFQN < pack.Artifacts[j].SymbolFQN
	})
}

func sortGoals(goals []*graph.Entity) {
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].Priority != goals[j].Priority {
			return goals[i].Priority > goals[j].Priority
		}
		if !goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].CreatedAt.Before(goals[j].CreatedAt)
		}
		return goals[i].ID < goals[j].ID
	})
}

// sortByMentions orders a section by how often its concepts came up, most
// mentioned first, oldest first among equals.
func sortByMentions(entities []*graph.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].MentionCount != entities[j].MentionCount {
			return entities[i].MentionCount > entities[j].MentionCount
		}
		if !entities[i].CreatedAt.Equal(entities[j].CreatedAt) {
			return entities[i].CreatedAt.Before(entities[j].CreatedAt)
		}
		return entities[i].ID < entities[j].ID
	})
}

func emptyPack(projectID string) Pack {
	return Pack{
		ProjectID:   projectID,
		Goals:       []*graph.Entity{},
		Constraints: []*graph.Entity{},
		Preferences: []*graph.Entity{},
		PainPoints:  []*graph.Entity{},
		Artifacts:   []*graph.CodeArtifact{},
		Strategies:  []*graph.Entity{},
		Decisions:   []*graph.Entity{},
	}
}
