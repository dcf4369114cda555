package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bindery/shelf/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals DocumentsIngestedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.DocumentsIngestedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeDocumentsIngested,
			EventID:       "evt_123",
			EmittedAt:     now,
			Source: eventstream.EventSource{
				Provider: "ollama",
				Model:    "nomic-embed-text",
			},
			Collection: "documents",
			Count:      3,
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("collection"))
		Expect(got).To(HaveKey("count"))
	})

	It("marshals CollectionDeletedEvent with expected top-level keys", func() {
		event := eventstream.CollectionDeletedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeCollectionDeleted,
			EventID:       "evt_456",
			EmittedAt:     time.Unix(1735689600, 0).UTC(),
			Collection:    "documents",
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("collection"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeDocumentsIngested).To(Equal("shelf.documents.ingested"))
		Expect(eventstream.EventTypeCollectionDeleted).To(Equal("shelf.collection.deleted"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilEvent).To(MatchError("nil event"))
	})
})
