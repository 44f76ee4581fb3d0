// Package ingest implements the ingestion pipeline: persist the raw
// interaction, extract candidate concepts, reconcile each one into the
// graph, and link provenance edges.
//
// The pipeline is deliberately forgiving. Once the interaction is stored,
// nothing downstream raises: extractor failures and per-candidate store
// failures degrade the Result instead of losing the exchange.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
	"github.com/papercomputeco/recall/pkg/utils"
)

const defaultExtractTimeout = 30 * time.Second

// Pipeline processes raw messages into the memory graph.
type Pipeline struct {
	store          store.Driver
	extractor      extract.Extractor
	reconciler     *Reconciler
	publisher      eventstream.Publisher
	log            *zap.Logger
	extractTimeout time.Duration

	now func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractTimeout bounds each extractor call. Defaults to 30s.
func WithExtractTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.extractTimeout = d
		}
	}
}

// WithPublisher sets the post-ingest event publisher.
func WithPublisher(pub eventstream.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithClock overrides the pipeline clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates an ingestion pipeline. The extractor may be nil, in
// which case every ingest records the interaction and nothing else.
func NewPipeline(driver store.Driver, extractor extract.Extractor, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pipeline{
		store:          driver,
		extractor:      extractor,
		reconciler:     NewReconciler(driver, log),
		log:            log,
		extractTimeout: defaultExtractTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessMessage runs one exchange through the pipeline and always returns a
// structured Result.
func (p *Pipeline) ProcessMessage(ctx context.Context, req Request) Result {
	result := Result{Entities: []EntityResult{}}

	if req.ProjectID == "" {
		result.Error = store.ValidationError{Field: "project_id", Reason: "required"}.Error()
		return result
	}
	if strings.TrimSpace(req.RawText) == "" {
		result.Error = store.ValidationError{Field: "raw_text", Reason: "required"}.Error()
		return result
	}

	now := p.now().UTC()

	interaction := &graph.Interaction{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		RawText:   req.RawText,
		Files:     req.Files,
		Diff:      req.Diff,
		Symbols:   req.Symbols,
		Tags:      req.Tags,
		CreatedAt: now,
	}

	// The interaction is the provenance record; it goes in before anything
	// that can fail, so a degraded ingest still leaves the raw exchange
	// recoverable.
	if err := p.store.PutInteraction(ctx, interaction); err != nil {
		p.log.Error("interaction persist failed",
			zap.String("project", req.ProjectID),
			zap.Error(err),
		)
		result.Error = err.Error()
		return result
	}
	result.InteractionID = interaction.ID

	extraction := p.runExtraction(ctx, req.RawText, &result)
	if extraction == nil {
		p.publish(ctx, req.ProjectID, &result)
		return result
	}

	result.Extracted = extraction
	result.Confidence = clampConfidence(extraction.Confidence)

	for _, batch := range []struct {
		t          graph.NodeType
		candidates []extract.Candidate
	}{
		{graph.TypeGoal, extraction.Goals},
		{graph.TypeConstraint, extraction.Constraints},
		{graph.TypePreference, extraction.Preferences},
		{graph.TypePainPoint, extraction.PainPoints},
		{graph.TypeStrategy, extraction.Strategies},
	} {
		for _, cand := range batch.candidates {
			p.reconcileCandidate(ctx, req, batch.t, cand, interaction.ID, now, &result)
		}
	}

	p.publish(ctx, req.ProjectID, &result)

	return result
}

// runExtraction calls the extractor under its timeout. A nil return means
// there is nothing to reconcile; the result carries the reason.
func (p *Pipeline) runExtraction(ctx context.Context, rawText string, result *Result) *extract.Extraction {
	if p.extractor == nil {
		result.Degraded = true
		result.DegradedInfo = "no extractor configured"
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.extractTimeout)
	defer cancel()

	extraction, err := p.extractor.Extract(ctx, rawText)
	if err != nil {
		p.log.Warn("extraction failed, interaction kept",
			zap.String("raw_text", utils.Truncate(rawText, 120)),
			zap.Error(err),
		)
		result.Degraded = true
		result.DegradedInfo = err.Error()
		return nil
	}

	if extraction.Empty() {
		result.Confidence = clampConfidence(extraction.Confidence)
		return nil
	}

	return extraction
}

// reconcileCandidate merges or creates one candidate and links provenance.
// Failures are enumerated on the result; the rest of the batch continues.
func (p *Pipeline) reconcileCandidate(ctx context.Context, req Request, t graph.NodeType, cand extract.Candidate, interactionID string, now time.Time, result *Result) {
	cand.Tags = mergeRequestTags(cand.Tags, req.Tags)

	id, created, err := p.reconciler.Reconcile(ctx, req.ProjectID, t, cand, now)
	if err != nil {
		p.log.Warn("reconcile failed",
			zap.String("project", req.ProjectID),
			zap.String("type", string(t)),
			zap.String("title", cand.Title),
			zap.Error(err),
		)
		result.Degraded = true
		result.Errors = append(result.Errors, CandidateError{Type: t, Title: cand.Title, Error: err.Error()})
		return
	}

	if err := p.store.PutEdge(ctx, graph.Edge{
		ProjectID: req.ProjectID,
		SrcID:     id,
		DstID:     interactionID,
		Type:      graph.EdgeDerivedFrom,
	}); err != nil {
		p.log.Warn("provenance edge failed",
			zap.String("entity", id),
			zap.Error(err),
		)
		result.Degraded = true
		result.Errors = append(result.Errors, CandidateError{Type: t, Title: cand.Title, Error: err.Error()})
	}

	result.Entities = append(result.Entities, EntityResult{
		ID:      id,
		Type:    t,
		Title:   cand.Title,
		Created: created,
	})
}

func (p *Pipeline) publish(ctx context.Context, projectID string, result *Result) {
	if p.publisher == nil {
		return
	}

	event := &eventstream.IngestEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     p.now().UTC(),
		ProjectID:     projectID,
		InteractionID: result.InteractionID,
		Degraded:      result.Degraded,
	}
	for _, e := range result.Entities {
		event.Entities = append(event.Entities, eventstream.EventEntity{
			ID:      e.ID,
			Type:    string(e.Type),
			Title:   e.Title,
			Created: e.Created,
		})
	}

	if err := p.publisher.PublishIngest(ctx, event); err != nil {
		p.log.Warn("ingest event publish failed", zap.Error(err))
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func mergeRequestTags(candTags, reqTags []string) []string {
	if len(reqTags) == 0 {
		return candTags
	}

	seen := make(map[string]bool, len(candTags)+len(reqTags))
	merged := make([]string, 0, len(candTags)+len(reqTags))
	for _, t := range append(append([]string{}, candTags...), reqTags...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}

	return merged
}
