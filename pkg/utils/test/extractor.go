// Package testutils provides mock collaborators shared by package tests.
package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/recall/pkg/extract"
)

// MockExtractor is a test extractor that returns configurable results and
// records every message it was asked to extract.
type MockExtractor struct {
	// Result is returned by Extract when Fail is false.
	Result *extract.Extraction

	// Fail causes Extract to return an error.
	Fail bool

	// Calls accumulates the raw texts passed to Extract.
	Calls []string
}

// NewMockExtractor creates a mock extractor returning an empty extraction.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{Result: &extract.Extraction{}}
}

func (m *MockExtractor) Extract(_ context.Context, rawText string) (*extract.Extraction, error) {
	m.Calls = append(m.Calls, rawText)

	if m.Fail {
		return nil, extract.Error{Provider: "mock", Err: errors.New("extraction unavailable")}
	}

	return m.Result, nil
}

// Ensure MockExtractor implements extract.Extractor
var _ extract.Extractor = (*MockExtractor)(nil)
