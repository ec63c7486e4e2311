package llm_service

import (
	"context"
	"sync"
)

type MockLLMService struct {
	CallLLMFunc func(ctx context.Context, config map[string]interface{}, prompt string) (string, error)

	mu      sync.Mutex
	Prompts []string
}

func (m *MockLLMService) CallLLM(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if m.CallLLMFunc != nil {
		return m.CallLLMFunc(ctx, config, prompt)
	}
	return "mock response", nil
}

func (m *MockLLMService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
