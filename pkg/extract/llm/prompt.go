package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/papercomputeco/recall/pkg/extract"
)

const extractionPrompt = `You analyze one message from a software project conversation and extract durable project knowledge.

Extract concepts into these categories:
- goals: outcomes the project is working toward
- constraints: hard requirements or limits that must hold
- preferences: stylistic or tooling choices the user favors
- pain_points: recurring problems or frustrations
- strategies: approaches or plans for how to achieve goals

Rules:
- Extract only what the message actually states or clearly implies. Do not invent.
- Titles are short noun phrases (under 80 characters). The same concept phrased differently should get the same title.
- Use priority 1-5 for goals (5 = most urgent) when the message signals urgency, else omit.
- acceptance_criteria only when the message states concrete done-conditions.
- confidence is your overall certainty in the extraction, 0.0 to 1.0.
- An empty category is an empty array, not null prose.

Respond with a single JSON object:
{
  "confidence": 0.0,
  "goals": [{"title": "", "body": "", "priority": 0, "acceptance_criteria": [], "tags": []}],
  "constraints": [{"title": "", "body": "", "tags": []}],
  "preferences": [{"title": "", "body": "", "tags": []}],
  "pain_points": [{"title": "", "body": "", "tags": []}],
  "strategies": [{"title": "", "body": "", "tags": []}]
}

Message:
`

func buildPrompt(rawText string) string {
	return extractionPrompt + rawText
}

// parseExtraction decodes the model reply, tolerating markdown fences and
// leading prose around the JSON object.
func parseExtraction(raw string) (*extract.Extraction, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in model reply")
	}

	var extraction extract.Extraction
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &extraction); err != nil {
		return nil, err
	}

	dropUntitled(&extraction.Goals)
	dropUntitled(&extraction.Constraints)
	dropUntitled(&extraction.Preferences)
	dropUntitled(&extraction.PainPoints)
	dropUntitled(&extraction.Strategies)

	return &extraction, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// dropUntitled removes candidates with a blank title; they cannot be
// reconciled into the graph.
func dropUntitled(candidates *[]extract.Candidate) {
	kept := (*candidates)[:0]
	for _, c := range *candidates {
		if strings.TrimSpace(c.Title) != "" {
			kept = append(kept, c)
		}
	}
	*candidates = kept
}
