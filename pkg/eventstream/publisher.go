// Package eventstream defines the post-ingest event contract. Publishing is
// best-effort: a failed publish is logged by the caller and never fails the
// ingest that produced it.
package eventstream

import "context"

// Publisher publishes ingest events to an event stream backend.
type Publisher interface {
	PublishIngest(ctx context.Context, event *IngestEvent) error
	Close() error
}
