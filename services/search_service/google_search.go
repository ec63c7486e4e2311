package search_service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/serisow/policybot/pipeline_type"
)

const DefaultGoogleSearchURL = "https://www.googleapis.com/customsearch/v1"

// SearchClient returns up to num web results for query.
type SearchClient interface {
	Search(ctx context.Context, query string, num int) ([]pipeline_type.SearchResult, error)
}

type GoogleHttpError struct {
	StatusCode int
	Message    string
	RawBody    string
}

func (e *GoogleHttpError) Error() string {
	return fmt.Sprintf("google search API returned status %d: %s", e.StatusCode, e.Message)
}

// GoogleSearchClient calls the Custom Search JSON API.
type GoogleSearchClient struct {
	apiKey     string
	engineID   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewGoogleSearchClient builds a client. A requestsPerSecond of zero or less
// disables throttling.
func NewGoogleSearchClient(apiKey, engineID, baseURL string, timeout time.Duration, requestsPerSecond float64, logger *slog.Logger) *GoogleSearchClient {
	if baseURL == "" {
		baseURL = DefaultGoogleSearchURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &GoogleSearchClient{
		apiKey:     apiKey,
		engineID:   engineID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GoogleSearchClient) Search(ctx context.Context, query string, num int) ([]pipeline_type.SearchResult, error) {
	if c.apiKey == "" || c.engineID == "" {
		return nil, fmt.Errorf("google Custom Search API key or Search Engine ID is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for search rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	if num > 0 {
		params.Set("num", strconv.Itoa(num))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating Google search request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making Google search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading Google search response: %w", err)
	}

	var searchResult googleSearchResponse
	decodeErr := json.Unmarshal(body, &searchResult)

	if resp.StatusCode != http.StatusOK {
		httpErr := &GoogleHttpError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), RawBody: string(body)}
		if decodeErr == nil && searchResult.Error != nil && searchResult.Error.Message != "" {
			httpErr.Message = searchResult.Error.Message
		}
		return nil, httpErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("error decoding Google search response: %w", decodeErr)
	}

	results := make([]pipeline_type.SearchResult, 0, len(searchResult.Items))
	for _, item := range searchResult.Items {
		results = append(results, pipeline_type.SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}

	c.logger.Debug("Google search completed",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}
