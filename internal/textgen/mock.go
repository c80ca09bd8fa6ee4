package textgen

import (
	"context"
	"sync"

	contextutils "learnanalytics/internal/utils"
)

// MockResponse is a canned reply for MockGenerator
type MockResponse struct {
	Text string
	Err  error
}

// MockGenerator returns canned replies in FIFO order and records every prompt.
// With an empty queue it fails with ErrAIProviderUnavailable.
type MockGenerator struct {
	mu        sync.Mutex
	responses []MockResponse
	Prompts   []string
}

// NewMockGenerator creates a MockGenerator with the given canned replies
func NewMockGenerator(responses ...MockResponse) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// Generate returns the next canned reply
func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if len(m.responses) == 0 {
		return "", contextutils.ErrAIProviderUnavailable
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return "", resp.Err
	}
	return cleanOutput(resp.Text), nil
}

// AddResponse appends a canned reply to the queue
func (m *MockGenerator) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
