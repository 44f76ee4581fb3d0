package ingest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
)

// blindStore hides the existing entity from the reconciler's first lookup,
// forcing the create-then-conflict path a cross-process race would take.
type blindStore struct {
	*inmemory.Driver
	misses int
}

func (b *blindStore) FindActiveEntity(ctx context.Context, projectID string, t graph.NodeType, normalizedTitle string) (*graph.Entity, error) {
	if b.misses > 0 {
		b.misses--
		return nil, store.NotFoundError{Kind: "entity", Key: normalizedTitle}
	}
	return b.Driver.FindActiveEntity(ctx, projectID, t, normalizedTitle)
}

var _ = Describe("Reconciler", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		now = time.Now().UTC()
	})

	It("rejects non-entity types", func() {
		r := NewReconciler(driver, zap.NewNop())

		_, _, err := r.Reconcile(ctx, "p1", graph.TypeInteraction, extract.Candidate{Title: "x"}, now)
		Expect(err).To(BeAssignableToTypeOf(store.ValidationError{}))
	})

	It("rejects titles that normalize to nothing", func() {
		r := NewReconciler(driver, zap.NewNop())

		_, _, err := r.Reconcile(ctx, "p1", graph.TypeGoal, extract.Candidate{Title: "!!!"}, now)
		Expect(err).To(BeAssignableToTypeOf(store.ValidationError{}))
	})

	It("merges into the winner after losing a create race", func() {
		winner := &graph.Entity{
			ID:              "winner",
			ProjectID:       "p1",
			Type:            graph.TypeGoal,
			Title:           "Ship v2",
			NormalizedTitle: "ship v2",
			Status:          graph.StatusActive,
			MentionCount:    1,
			CreatedAt:       now,
			LastSeenAt:      now,
		}
		Expect(driver.CreateEntity(ctx, winner)).To(Succeed())

		// First lookup misses, the insert hits the uniqueness conflict, and
		// the retry finds the winner.
		r := NewReconciler(&blindStore{Driver: driver, misses: 1}, zap.NewNop())

		id, created, err := r.Reconcile(ctx, "p1", graph.TypeGoal, extract.Candidate{Title: "ship V2"}, now.Add(time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())
		Expect(id).To(Equal("winner"))

		got, err := driver.GetEntity(ctx, "p1", "winner")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MentionCount).To(Equal(2))
	})
})
