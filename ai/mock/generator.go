package mock

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	// If nil, uses default deterministic behavior.
	GenerateAnswerFunc func(ctx context.Context, question string, evidence []string) (string, error)

	callCount int
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateAnswer produces a deterministic answer summarizing the evidence.
func (m *MockGenerator) GenerateAnswer(ctx context.Context, question string, evidence []string) (string, error) {
	m.callCount++

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, question, evidence)
	}

	// Default: deterministic answer derived from the inputs so tests can
	// assert on content without a real model.
	return fmt.Sprintf("answer(%s) from %d facts: %s",
		question, len(evidence), strings.Join(evidence, " | ")), nil
}

// CallCount returns the number of times GenerateAnswer was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateAnswerFunc = nil
}
