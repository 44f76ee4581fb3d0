package contextpack

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

func seedEntity(driver *inmemory.Driver, id string, t graph.NodeType, title string, priority int) *graph.Entity {
	now := time.Now().UTC()
	e := &graph.Entity{
		ID:              id,
		ProjectID:       "p1",
		Type:            t,
		Title:           title,
		NormalizedTitle: graph.NormalizeTitle(title),
		Status:          graph.StatusActive,
		Priority:        priority,
		MentionCount:    1,
		CreatedAt:       now,
		LastSeenAt:      now,
	}
	if t == graph.TypePainPoint {
		e.Status = graph.StatusOpen
	}
	Expect(driver.CreateEntity(context.Background(), e)).To(Succeed())
	return e
}

func seedEdge(driver *inmemory.Driver, src, dst string, t graph.EdgeType) {
	Expect(driver.PutEdge(context.Background(), graph.Edge{
		ProjectID: "p1", SrcID: src, DstID: dst, Type: t,
	})).To(Succeed())
}

var _ = Describe("Builder", func() {
	var (
		driver  *inmemory.Driver
		builder *Builder
		ctx     context.Context
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		builder = NewBuilder(driver, zap.NewNop(), 0)
		ctx = context.Background()
	})

	It("requires a project id", func() {
		pack := builder.Build(ctx, Request{})
		Expect(pack.Errors).To(HaveLen(1))
		Expect(pack.Errors[0]).To(ContainSubstring("project_id"))
	})

	It("returns an empty pack for an empty project", func() {
		pack := builder.Build(ctx, Request{ProjectID: "p1"})
		Expect(pack.Errors).To(BeEmpty())
		Expect(pack.Goals).To(BeEmpty())
		Expect(pack.Truncated).To(BeFalse())
	})

	Describe("seeding", func() {
		It("seeds from all active goals by default", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			seedEntity(driver, "g2", graph.TypeGoal, "Add dark mode", 1)

			pack := builder.Build(ctx, Request{ProjectID: "p1"})
			Expect(pack.Goals).To(HaveLen(2))
		})

		It("narrows to the focus goal's neighborhood", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			seedEntity(driver, "g2", graph.TypeGoal, "Add dark mode", 1)
			seedEntity(driver, "s1", graph.TypeStrategy, "Feature-flag rollout", 0)
			seedEdge(driver, "g1", "s1", graph.EdgeRelatesTo)

			pack := builder.Build(ctx, Request{ProjectID: "p1", FocusGoalID: "g1"})

			Expect(pack.Goals).To(HaveLen(1))
			Expect(pack.Goals[0].ID).To(Equal("g1"))
			Expect(pack.Strategies).To(HaveLen(1))
		})

		It("reports a missing focus goal and falls back to active goals", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)

			pack := builder.Build(ctx, Request{ProjectID: "p1", FocusGoalID: "nope"})

			Expect(pack.Errors).To(ContainElement(ContainSubstring("focus goal not found")))
			Expect(pack.Goals).To(HaveLen(1))
		})

		It("unions fulltext hits into the seeds", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			seedEntity(driver, "c1", graph.TypeConstraint, "Keep bundle under 1MB", 0)

			pack := builder.Build(ctx, Request{ProjectID: "p1", Query: "bundle"})

			Expect(pack.Goals).To(HaveLen(1))
			Expect(pack.Constraints).To(HaveLen(1))
		})
	})

	Describe("expansion", func() {
		It("honors the hop limit", func() {
			// g1 -> s1 -> d1: a 2-chain off the seed goal.
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			seedEntity(driver, "s1", graph.TypeStrategy, "Feature-flag rollout", 0)
			seedEntity(driver, "d1", graph.TypeDecision, "Use LaunchDarkly", 0)
			seedEdge(driver, "g1", "s1", graph.EdgeRelatesTo)
			seedEdge(driver, "s1", "d1", graph.EdgeRelatesTo)

			one := builder.Build(ctx, Request{ProjectID: "p1", KHops: 1})
			Expect(one.Strategies).To(HaveLen(1))
			Expect(one.Decisions).To(BeEmpty())

			two := builder.Build(ctx, Request{ProjectID: "p1", KHops: 2})
			Expect(two.Strategies).To(HaveLen(1))
			Expect(two.Decisions).To(HaveLen(1))
		})

		It("rejects out-of-range hop counts without touching the store", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)

			flaky := testutils.NewFlakyStore(driver)
			flaky.FailNeighbors = true
			flaky.FailSearch = true
			b := NewBuilder(flaky, zap.NewNop(), 0)

			pack := b.Build(ctx, Request{ProjectID: "p1", KHops: 9, Query: "ship"})
			Expect(pack.Errors).To(ConsistOf(ContainSubstring("k_hops")))
			Expect(pack.Goals).To(BeEmpty())

			pack = b.Build(ctx, Request{ProjectID: "p1", KHops: -3})
			Expect(pack.Errors).To(ConsistOf(ContainSubstring("k_hops")))
		})

		It("defaults the hop count when unset", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			seedEntity(driver, "s1", graph.TypeStrategy, "Feature-flag rollout", 0)
			seedEdge(driver, "g1", "s1", graph.EdgeRelatesTo)

			pack := builder.Build(ctx, Request{ProjectID: "p1"})
			Expect(pack.Errors).To(BeEmpty())
			Expect(pack.Strategies).To(HaveLen(1))
		})

		It("stops at the node budget and flags truncation", func() {
			small := NewBuilder(driver, zap.NewNop(), 3)

			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			for i := 0; i < 5; i++ {
				id := fmt.Sprintf("s%d", i)
				seedEntity(driver, id, graph.TypeStrategy, fmt.Sprintf("Strategy %d", i), 0)
				seedEdge(driver, "g1", id, graph.EdgeRelatesTo)
			}

			pack := small.Build(ctx, Request{ProjectID: "p1"})

			Expect(pack.Truncated).To(BeTrue())
			total := len(pack.Goals) + len(pack.Strategies)
			Expect(total).To(BeNumerically("<=", 3))
		})

		It("excludes resolved pain points from the pack", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			open := seedEntity(driver, "pp1", graph.TypePainPoint, "Slow CI", 0)
			closed := seedEntity(driver, "pp2", graph.TypePainPoint, "Flaky auth test", 0)
			Expect(driver.SetEntityStatus(ctx, "p1", closed.ID, graph.StatusResolved)).To(Succeed())
			seedEdge(driver, "g1", open.ID, graph.EdgeRelatesTo)
			seedEdge(driver, "g1", closed.ID, graph.EdgeRelatesTo)

			pack := builder.Build(ctx, Request{ProjectID: "p1"})

			Expect(pack.PainPoints).To(HaveLen(1))
			Expect(pack.PainPoints[0].ID).To(Equal("pp1"))
		})
	})

	Describe("ordering", func() {
		It("sorts goals by priority descending then age", func() {
			seedEntity(driver, "low", graph.TypeGoal, "Low priority", 1)
			seedEntity(driver, "high", graph.TypeGoal, "High priority", 5)

			pack := builder.Build(ctx, Request{ProjectID: "p1"})

			Expect(pack.Goals[0].ID).To(Equal("high"))
			Expect(pack.Goals[1].ID).To(Equal("low"))
		})

		It("sorts other sections by mention count descending", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)
			rare := seedEntity(driver, "c-a", graph.TypeConstraint, "Alpha rule", 0)
			often := seedEntity(driver, "c-z", graph.TypeConstraint, "Zebra rule", 0)
			seedEdge(driver, "g1", rare.ID, graph.EdgeRelatesTo)
			seedEdge(driver, "g1", often.ID, graph.EdgeRelatesTo)
			for i := 0; i < 4; i++ {
				Expect(driver.RecordMention(ctx, "p1", often.ID, time.Now().UTC(), nil)).To(Succeed())
			}

			pack := builder.Build(ctx, Request{ProjectID: "p1"})

			Expect(pack.Constraints).To(HaveLen(2))
			Expect(pack.Constraints[0].Title).To(Equal("Zebra rule"))
			Expect(pack.Constraints[1].Title).To(Equal("Alpha rule"))
		})

		It("breaks mention ties by creation order", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)

			base := time.Now().UTC()
			for _, c := range []struct {
				id      string
				title   string
				created time.Time
			}{
				{"c-z", "Zebra rule", base},
				{"c-a", "Alpha rule", base.Add(time.Minute)},
			} {
				Expect(driver.CreateEntity(ctx, &graph.Entity{
					ID: c.id, ProjectID: "p1", Type: graph.TypeConstraint,
					Title: c.title, NormalizedTitle: graph.NormalizeTitle(c.title),
					Status: graph.StatusActive, MentionCount: 1,
					CreatedAt: c.created, LastSeenAt: c.created,
				})).To(Succeed())
				seedEdge(driver, "g1", c.id, graph.EdgeRelatesTo)
			}

			pack := builder.Build(ctx, Request{ProjectID: "p1"})

			Expect(pack.Constraints).To(HaveLen(2))
			Expect(pack.Constraints[0].ID).To(Equal("c-z"), "older wins the tie")
			Expect(pack.Constraints[1].ID).To(Equal("c-a"))
		})
	})

	Describe("degradation", func() {
		It("returns a partial pack with error entries when expansion fails", func() {
			seedEntity(driver, "g1", graph.TypeGoal, "Ship v2", 5)

			flaky := testutils.NewFlakyStore(driver)
			flaky.FailNeighbors = true
			b := NewBuilder(flaky, zap.NewNop(), 0)

			pack := b.Build(ctx, Request{ProjectID: "p1"})

			Expect(pack.Errors).NotTo(BeEmpty())
			Expect(pack.Goals).To(HaveLen(1), "seeds still resolve")
		})
	})
})
