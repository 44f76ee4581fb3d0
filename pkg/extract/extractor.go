// Package extract defines the entity extraction contract for the ingestion
// pipeline. An Extractor reads one raw interaction message and proposes
// candidate concepts; the pipeline decides what to do with them.
package extract

import "context"

// Candidate is one proposed concept from a raw message. Title is required;
// everything else is optional enrichment.
type Candidate struct {
	Title              string   `json:"title"`
	Body               string   `json:"body,omitempty"`
	Priority           int      `json:"priority,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

// Extraction is the structured output of one extraction call. Confidence is
// the extractor's self-reported certainty; the pipeline clamps it to [0,1]
// before trusting it.
type Extraction struct {
	Confidence  float64     `json:"confidence"`
	Goals       []Candidate `json:"goals,omitempty"`
	Constraints []Candidate `json:"constraints,omitempty"`
	Preferences []Candidate `json:"preferences,omitempty"`
	PainPoints  []Candidate `json:"pain_points,omitempty"`
	Strategies  []Candidate `json:"strategies,omitempty"`
}

// Empty reports whether the extraction produced no candidates at all.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Goals) == 0 && len(e.Constraints) == 0 &&
		len(e.Preferences) == 0 && len(e.PainPoints) == 0 && len(e.Strategies) == 0)
}

// Extractor proposes candidate concepts from a raw interaction message.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (*Extraction, error)
}

// Error wraps an extraction failure. The ingestion pipeline treats it as a
// degraded outcome, not a fatal one: the interaction is already persisted by
// the time extraction runs.
type Error struct {
	Provider string
	Err      error
}

func (e Error) Error() string {
	if e.Provider == "" {
		return "extraction failed: " + e.Err.Error()
	}
	return "extraction failed (" + e.Provider + "): " + e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}
