package track

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/impact"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("Tracker", func() {
	var (
		driver  *inmemory.Driver
		tracker *Tracker
		ctx     context.Context
	)

	addGoal := func(id, title string) {
		now := time.Now().UTC()
		Expect(driver.CreateEntity(ctx, &graph.Entity{
			ID: id, ProjectID: "p1", Type: graph.TypeGoal,
			Title: title, NormalizedTitle: graph.NormalizeTitle(title),
			Status: graph.StatusActive, MentionCount: 1,
			CreatedAt: now, LastSeenAt: now,
		})).To(Succeed())
	}

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		tracker = NewTracker(driver, impact.NewAnalyzer(driver, zap.NewNop()), zap.NewNop())
		ctx = context.Background()
	})

	Describe("validation", func() {
		It("requires a project id", func() {
			result := tracker.TrackChanges(ctx, Request{ChangedPaths: []string{"a.go"}})
			Expect(result.Error).To(ContainSubstring("project_id"))
		})

		It("requires at least one changed path", func() {
			result := tracker.TrackChanges(ctx, Request{ProjectID: "p1"})
			Expect(result.Error).To(ContainSubstring("changed_paths"))
		})
	})

	Describe("goal linking", func() {
		BeforeEach(func() {
			addGoal("g1", "Offline sync")
			addGoal("g2", "Dark mode")
		})

		It("auto-links every active goal when none are named", func() {
			result := tracker.TrackChanges(ctx, Request{
				ProjectID:    "p1",
				ChangedPaths: []string{"pkg/sync/queue.go"},
			})

			Expect(result.Error).To(BeEmpty())
			Expect(result.ArtifactsLinked).To(Equal(1))
			Expect(result.AutoLinkedGoals).To(HaveLen(2))

			arts, err := driver.ArtifactsByPaths(ctx, "p1", []string{"pkg/sync/queue.go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(arts).To(HaveLen(1))

			edges, err := driver.Neighbors(ctx, "p1", []string{arts[0].ID}, []graph.EdgeType{graph.EdgeImplements})
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(2))
		})

		It("links nothing when the caller names an empty goal list", func() {
			result := tracker.TrackChanges(ctx, Request{
				ProjectID:      "p1",
				ChangedPaths:   []string{"pkg/sync/queue.go"},
				RelatedGoalIDs: []string{},
			})

			Expect(result.AutoLinkedGoals).To(BeEmpty())

			arts, err := driver.ArtifactsByPaths(ctx, "p1", []string{"pkg/sync/queue.go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(arts).To(HaveLen(1), "the artifact is still recorded")

			edges, err := driver.Neighbors(ctx, "p1", []string{arts[0].ID}, []graph.EdgeType{graph.EdgeImplements})
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(BeEmpty())
		})

		It("links exactly the named goals", func() {
			result := tracker.TrackChanges(ctx, Request{
				ProjectID:      "p1",
				ChangedPaths:   []string{"pkg/sync/queue.go"},
				RelatedGoalIDs: []string{"g1"},
			})

			Expect(result.AutoLinkedGoals).To(BeEmpty(), "explicit goals are not auto-linked")

			arts, _ := driver.ArtifactsByPaths(ctx, "p1", []string{"pkg/sync/queue.go"})
			edges, err := driver.Neighbors(ctx, "p1", []string{arts[0].ID}, []graph.EdgeType{graph.EdgeImplements})
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(1))
			Expect(edges[0].DstID).To(Equal("g1"))
		})
	})

	Describe("artifacts", func() {
		It("detects the language from the extension", func() {
			tracker.TrackChanges(ctx, Request{ProjectID: "p1", ChangedPaths: []string{"pkg/sync/queue.go"}})

			arts, err := driver.ArtifactsByPaths(ctx, "p1", []string{"pkg/sync/queue.go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(arts[0].Language).To(Equal("go"))
		})

		It("prefers an explicit language over detection", func() {
			tracker.TrackChanges(ctx, Request{
				ProjectID:    "p1",
				ChangedPaths: []string{"scripts/build"},
				Language:     "shell",
			})

			arts, err := driver.ArtifactsByPaths(ctx, "p1", []string{"scripts/build"})
			Expect(err).NotTo(HaveOccurred())
			Expect(arts[0].Language).To(Equal("shell"))
		})

		It("re-tracking a path reuses the artifact", func() {
			tracker.TrackChanges(ctx, Request{ProjectID: "p1", ChangedPaths: []string{"pkg/a.go"}})
			tracker.TrackChanges(ctx, Request{ProjectID: "p1", ChangedPaths: []string{"pkg/a.go"}, GitCommit: "abc123"})

			arts, err := driver.ArtifactsByPaths(ctx, "p1", []string{"pkg/a.go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(arts).To(HaveLen(1))
			Expect(arts[0].GitCommit).To(Equal("abc123"))
		})

		It("skips failing paths and records the rest", func() {
			flaky := testutils.NewFlakyStore(driver)
			flaky.FailUpsertArtifact = true
			t := NewTracker(flaky, nil, zap.NewNop())

			result := t.TrackChanges(ctx, Request{ProjectID: "p1", ChangedPaths: []string{"pkg/a.go", "pkg/b.go"}})

			Expect(result.Error).To(BeEmpty())
			Expect(result.ArtifactsLinked).To(Equal(0))
			Expect(result.LinkedPaths).To(BeEmpty())
		})
	})

	Describe("impact", func() {
		It("attaches a report when requested", func() {
			addGoal("g1", "Offline sync")

			// First track creates the artifact and its IMPLEMENTS edge.
			tracker.TrackChanges(ctx, Request{ProjectID: "p1", ChangedPaths: []string{"pkg/sync/queue.go"}})

			result := tracker.TrackChanges(ctx, Request{
				ProjectID:    "p1",
				ChangedPaths: []string{"pkg/sync/queue.go"},
				CheckImpact:  true,
			})

			Expect(result.Impact).NotTo(BeNil())
			Expect(result.Impact.GoalsAffected).To(HaveLen(1))
		})

		It("omits the report by default", func() {
			result := tracker.TrackChanges(ctx, Request{ProjectID: "p1", ChangedPaths: []string{"pkg/a.go"}})
			Expect(result.Impact).To(BeNil())
		})
	})
})
