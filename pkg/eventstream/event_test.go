package eventstream_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
)

var _ = Describe("IngestEvent", func() {
	It("round-trips through JSON with its schema version", func() {
		event := &eventstream.IngestEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeIngested,
			EventID:       "ev-1",
			EmittedAt:     time.Now().UTC(),
			ProjectID:     "p1",
			InteractionID: "i1",
			Entities: []eventstream.EventEntity{
				{ID: "e1", Type: "Goal", Title: "Ship v2", Created: true},
			},
		}

		data, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var decoded eventstream.IngestEvent
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(decoded.EventType).To(Equal("recall.interaction.ingested"))
		Expect(decoded.Entities).To(HaveLen(1))
	})
})

var _ = Describe("Nop Publisher", func() {
	It("accepts events silently", func() {
		p := nop.NewPublisher()
		Expect(p.PublishIngest(context.Background(), &eventstream.IngestEvent{EventID: "ev-1"})).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects nil events", func() {
		p := nop.NewPublisher()
		Expect(p.PublishIngest(context.Background(), nil)).To(MatchError(eventstream.ErrNilIngestEvent))
	})
})
