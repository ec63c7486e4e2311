package search_service

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const contentSelectors = "article, .content, #content, main, .post, #main, .entry-content, .post-content, " +
	".blog-post, #primary, #main-content, .text, .text-content, #body-content, .post-article"

var whitespacePattern = regexp.MustCompile(`\s+`)

// ContentFetcher returns the readable text of a web page.
type ContentFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// PageFetcher downloads a page and extracts its main text with goquery.
type PageFetcher struct {
	httpClient *http.Client
	maxChars   int
}

func NewPageFetcher(timeout time.Duration, maxChars int) *PageFetcher {
	return &PageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxChars:   maxChars,
	}
}

func (f *PageFetcher) Fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("error creating page request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error fetching content: HTTP status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}

	var content strings.Builder
	doc.Find(contentSelectors).Each(func(i int, s *goquery.Selection) {
		content.WriteString(s.Text())
		content.WriteString("\n")
	})

	text := content.String()
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}

	return truncate(cleanContent(text), f.maxChars), nil
}

func cleanContent(content string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(content, " "))
}

// truncate cuts s to at most max characters and marks the cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
