package ingest

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

func goalExtraction(title string) *extract.Extraction {
	return &extract.Extraction{
		Confidence: 0.9,
		Goals:      []extract.Candidate{{Title: title, Priority: 3}},
	}
}

var _ = Describe("Pipeline", func() {
	var (
		driver    *inmemory.Driver
		extractor *testutils.MockExtractor
		pipeline  *Pipeline
		ctx       context.Context
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		extractor = testutils.NewMockExtractor()
		pipeline = NewPipeline(driver, extractor, zap.NewNop())
		ctx = context.Background()
	})

	Describe("validation", func() {
		It("rejects a missing project id", func() {
			result := pipeline.ProcessMessage(ctx, Request{RawText: "hello"})
			Expect(result.Error).To(ContainSubstring("project_id"))
			Expect(result.InteractionID).To(BeEmpty())
		})

		It("rejects blank raw text", func() {
			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "   "})
			Expect(result.Error).To(ContainSubstring("raw_text"))
		})
	})

	Describe("happy path", func() {
		It("persists the interaction and creates extracted entities", func() {
			extractor.Result = goalExtraction("Support offline mode")

			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "we need offline mode"})

			Expect(result.Error).To(BeEmpty())
			Expect(result.Degraded).To(BeFalse())
			Expect(result.Confidence).To(Equal(0.9))
			Expect(result.Entities).To(HaveLen(1))
			Expect(result.Entities[0].Created).To(BeTrue())

			_, err := driver.GetInteraction(ctx, "p1", result.InteractionID)
			Expect(err).NotTo(HaveOccurred())

			entity, err := driver.GetEntity(ctx, "p1", result.Entities[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entity.Type).To(Equal(graph.TypeGoal))
			Expect(entity.MentionCount).To(Equal(1))
			Expect(entity.Status).To(Equal(graph.StatusActive))
		})

		It("carries the raw candidates alongside the reconciled entities", func() {
			extractor.Result = &extract.Extraction{
				Confidence: 0.9,
				Goals: []extract.Candidate{{
					Title:              "Ship v2",
					Body:               "the big release",
					Priority:           4,
					AcceptanceCriteria: []string{"all tests green"},
				}},
				Constraints: []extract.Candidate{{Title: "Keep bundle under 1MB"}},
			}

			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ship v2, small bundle"})

			Expect(result.Extracted).NotTo(BeNil())
			Expect(result.Extracted.Goals).To(HaveLen(1))
			Expect(result.Extracted.Goals[0].Body).To(Equal("the big release"))
			Expect(result.Extracted.Goals[0].Priority).To(Equal(4))
			Expect(result.Extracted.Goals[0].AcceptanceCriteria).To(ConsistOf("all tests green"))
			Expect(result.Extracted.Constraints).To(HaveLen(1))
			Expect(result.Entities).To(HaveLen(2))
		})

		It("links a provenance edge from each entity to the interaction", func() {
			extractor.Result = goalExtraction("Support offline mode")

			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "offline"})

			edges, err := driver.Neighbors(ctx, "p1", []string{result.Entities[0].ID}, []graph.EdgeType{graph.EdgeDerivedFrom})
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(1))
			Expect(edges[0].DstID).To(Equal(result.InteractionID))
		})

		It("starts pain points as open", func() {
			extractor.Result = &extract.Extraction{
				Confidence: 0.8,
				PainPoints: []extract.Candidate{{Title: "Slow CI"}},
			}

			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ci is slow"})
			Expect(result.Entities).To(HaveLen(1))

			entity, err := driver.GetEntity(ctx, "p1", result.Entities[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entity.Status).To(Equal(graph.StatusOpen))
		})

		It("merges request tags into candidates", func() {
			extractor.Result = &extract.Extraction{
				Confidence: 0.8,
				Goals:      []extract.Candidate{{Title: "Ship v2", Tags: []string{"release"}}},
			}

			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ship it", Tags: []string{"sprint-4"}})

			entity, err := driver.GetEntity(ctx, "p1", result.Entities[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entity.Tags).To(ConsistOf("release", "sprint-4"))
		})
	})

	Describe("idempotent re-ingest", func() {
		It("merges the same concept instead of duplicating it", func() {
			extractor.Result = goalExtraction("Support offline mode")
			first := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "offline please"})

			extractor.Result = goalExtraction("support OFFLINE mode!")
			second := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "offline again"})

			Expect(second.Entities).To(HaveLen(1))
			Expect(second.Entities[0].ID).To(Equal(first.Entities[0].ID))
			Expect(second.Entities[0].Created).To(BeFalse())

			entity, err := driver.GetEntity(ctx, "p1", first.Entities[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entity.MentionCount).To(Equal(2))

			// Each ingest leaves its own provenance edge.
			edges, err := driver.Neighbors(ctx, "p1", []string{entity.ID}, []graph.EdgeType{graph.EdgeDerivedFrom})
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(2))
		})
	})

	Describe("concurrent ingestion", func() {
		It("funnels N racing mentions of one concept into a single node", func() {
			const n = 16
			extractor.Result = goalExtraction("Support offline mode")

			var wg sync.WaitGroup
			results := make([]Result, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "offline"})
				}(i)
			}
			wg.Wait()

			ids := map[string]bool{}
			for _, r := range results {
				Expect(r.Error).To(BeEmpty())
				Expect(r.Entities).To(HaveLen(1))
				ids[r.Entities[0].ID] = true
			}
			Expect(ids).To(HaveLen(1))

			goals, err := driver.ActiveGoals(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(goals).To(HaveLen(1))
			Expect(goals[0].MentionCount).To(Equal(n))
		})
	})

	Describe("degraded extraction", func() {
		It("keeps the interaction when the extractor fails", func() {
			extractor.Fail = true

			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "hello"})

			Expect(result.Error).To(BeEmpty())
			Expect(result.Degraded).To(BeTrue())
			Expect(result.DegradedInfo).NotTo(BeEmpty())
			Expect(result.Extracted).To(BeNil())
			Expect(result.Entities).To(BeEmpty())

			_, err := driver.GetInteraction(ctx, "p1", result.InteractionID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("degrades when no extractor is configured", func() {
			bare := NewPipeline(driver, nil, zap.NewNop())

			result := bare.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "hello"})

			Expect(result.Degraded).To(BeTrue())
			Expect(result.DegradedInfo).To(Equal("no extractor configured"))
			Expect(result.InteractionID).NotTo(BeEmpty())
		})

		It("continues past a failing candidate", func() {
			flaky := testutils.NewFlakyStore(driver)
			flaky.FailCreateEntity = true
			p := NewPipeline(flaky, extractor, zap.NewNop())
			extractor.Result = goalExtraction("Support offline mode")

			result := p.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "offline"})

			Expect(result.Error).To(BeEmpty())
			Expect(result.Degraded).To(BeTrue())
			Expect(result.Errors).To(HaveLen(1))
			Expect(result.Errors[0].Title).To(Equal("Support offline mode"))

			_, err := driver.GetInteraction(ctx, "p1", result.InteractionID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails hard only when the interaction itself cannot be stored", func() {
			flaky := testutils.NewFlakyStore(driver)
			flaky.FailPutInteraction = true
			p := NewPipeline(flaky, extractor, zap.NewNop())

			result := p.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "hello"})

			Expect(result.Error).NotTo(BeEmpty())
			Expect(result.InteractionID).To(BeEmpty())
		})
	})

	Describe("confidence", func() {
		It("clamps out-of-range values into [0, 1]", func() {
			extractor.Result = &extract.Extraction{
				Confidence: 3.5,
				Goals:      []extract.Candidate{{Title: "Ship v2"}},
			}
			result := pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ship"})
			Expect(result.Confidence).To(Equal(1.0))

			extractor.Result = &extract.Extraction{
				Confidence: -0.2,
				Goals:      []extract.Candidate{{Title: "Ship v3"}},
			}
			result = pipeline.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ship"})
			Expect(result.Confidence).To(Equal(0.0))
		})
	})

	Describe("event publishing", func() {
		It("publishes one event per ingest", func() {
			publisher := testutils.NewMockPublisher()
			p := NewPipeline(driver, extractor, zap.NewNop(), WithPublisher(publisher))
			extractor.Result = goalExtraction("Ship v2")

			result := p.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ship"})

			events := publisher.Published()
			Expect(events).To(HaveLen(1))
			Expect(events[0].ProjectID).To(Equal("p1"))
			Expect(events[0].InteractionID).To(Equal(result.InteractionID))
			Expect(events[0].Entities).To(HaveLen(1))
		})

		It("treats publish failure as non-fatal", func() {
			publisher := testutils.NewMockPublisher()
			publisher.Fail = true
			p := NewPipeline(driver, extractor, zap.NewNop(), WithPublisher(publisher))
			extractor.Result = goalExtraction("Ship v2")

			result := p.ProcessMessage(ctx, Request{ProjectID: "p1", RawText: "ship"})

			Expect(result.Error).To(BeEmpty())
			Expect(result.Entities).To(HaveLen(1))
		})
	})
})
