package models

import (
	"context"
	"strings"
	"sync"
)

// MockProvider is an in-memory provider that replays canned replies for tests
type MockProvider struct {
	mu       sync.Mutex
	replies  []string
	fallback string
	err      error
	prompts  []string
	atts     []Attachment
}

// NewMockProvider returns a provider that answers with replies in order and
// then repeats the last one.
func NewMockProvider(replies ...string) *MockProvider {
	m := &MockProvider{replies: replies, fallback: "mock response"}
	if len(replies) > 0 {
		m.fallback = replies[len(replies)-1]
	}
	return m
}

// FailWith makes every later call return err
func (m *MockProvider) FailWith(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) SupportsModel(name string) bool {
	return strings.HasPrefix(name, "mock")
}

func (m *MockProvider) Configure(string) error {
	return nil
}

func (m *MockProvider) SetVerbose(bool) {}

// SendPrompt records the prompt and returns the next reply
func (m *MockProvider) SendPrompt(ctx context.Context, _ string, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return m.fallback, nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

// SendPromptWithAttachment records the attachment and replies like SendPrompt
func (m *MockProvider) SendPromptWithAttachment(ctx context.Context, model, prompt string, att Attachment) (string, error) {
	m.mu.Lock()
	m.atts = append(m.atts, att)
	m.mu.Unlock()
	return m.SendPrompt(ctx, model, prompt)
}

// Prompts returns every prompt received so far
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Attachments returns every attachment received so far
func (m *MockProvider) Attachments() []Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Attachment(nil), m.atts...)
}

// LastPrompt returns the most recent prompt, or ""
func (m *MockProvider) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
