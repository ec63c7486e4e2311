package search_service

import (
	"context"
	"sync"

	"github.com/serisow/policybot/pipeline_type"
)

type MockSearchClient struct {
	SearchFunc func(ctx context.Context, query string, num int) ([]pipeline_type.SearchResult, error)

	mu      sync.Mutex
	Queries []string
}

func (m *MockSearchClient) Search(ctx context.Context, query string, num int) ([]pipeline_type.SearchResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, num)
	}
	return nil, nil
}

type MockContentFetcher struct {
	FetchFunc func(ctx context.Context, link string) (string, error)
}

func (m *MockContentFetcher) Fetch(ctx context.Context, link string) (string, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, link)
	}
	return "", nil
}
