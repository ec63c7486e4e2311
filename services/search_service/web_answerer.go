package search_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serisow/policybot/pipeline_type"
	"github.com/serisow/policybot/services/llm_service"
)

const (
	linksHeader        = "🔗 Relevant Links from Across the Web:\n\n"
	resultsPerQuery    = 3
	maxLinks           = 3
	SummaryTemperature = 0.5
	pageContentLength  = 1000
)

// queryVariants widens the question towards regulatory sources, in the order
// they are tried.
func queryVariants(question string) []string {
	return []string{
		question + " RBI regulations",
		"banking regulations " + question,
		question + " financial policies",
		"latest updates on " + question + " banking",
		question + " financial authority guidelines",
	}
}

// WebAnswerer gathers a few distinct links for a question and summarises each
// one with the LLM.
type WebAnswerer struct {
	search    SearchClient
	llm       llm_service.LLMService
	llmConfig map[string]interface{}
	// fetcher is optional; when set the page text is added to the summary prompt.
	fetcher ContentFetcher
	logger  *slog.Logger
}

func NewWebAnswerer(search SearchClient, llm llm_service.LLMService, llmConfig map[string]interface{}, fetcher ContentFetcher, logger *slog.Logger) *WebAnswerer {
	cfg := make(map[string]interface{}, len(llmConfig)+1)
	for k, v := range llmConfig {
		cfg[k] = v
	}
	cfg["temperature"] = SummaryTemperature

	return &WebAnswerer{
		search:    search,
		llm:       llm,
		llmConfig: cfg,
		fetcher:   fetcher,
		logger:    logger.With(slog.String("source", pipeline_type.SourceWeb)),
	}
}

// Answer never fails: search and summary errors are logged and the affected
// query or result is skipped.
func (w *WebAnswerer) Answer(ctx context.Context, question string) pipeline_type.AnswerResult {
	start := time.Now()

	var out strings.Builder
	out.WriteString(linksHeader)

	seen := make(map[string]bool)
	accepted := 0

	for _, query := range queryVariants(question) {
		if accepted >= maxLinks {
			break
		}
		if err := ctx.Err(); err != nil {
			return w.failure(err)
		}

		results, err := w.search.Search(ctx, query, resultsPerQuery)
		if err != nil {
			w.logger.Error("Error processing search query",
				slog.String("query", query),
				slog.String("error", err.Error()))
			continue
		}

		for _, result := range results {
			if accepted >= maxLinks {
				break
			}
			if result.Link == "" || seen[result.Link] {
				continue
			}
			seen[result.Link] = true

			summary, err := w.summarize(ctx, question, result)
			if err != nil {
				w.logger.Error("Error summarizing search result",
					slog.String("query", query),
					slog.String("link", result.Link),
					slog.String("error", err.Error()))
				continue
			}

			title := result.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Fprintf(&out, "• %s\n  URL: %s\n  %s\n\n", title, result.Link, summary)
			accepted++
		}
	}

	w.logger.Info("Web question processed",
		slog.Int("links", accepted),
		slog.Float64("elapsed_seconds", time.Since(start).Seconds()))

	return pipeline_type.AnswerResult{Answer: strings.TrimSpace(out.String())}
}

func (w *WebAnswerer) failure(err error) pipeline_type.AnswerResult {
	err = pipeline_type.NewRAGError(pipeline_type.SearchError, "web answer", err)
	return pipeline_type.AnswerResult{
		Answer: "An error occurred while getting web answer: " + err.Error(),
		Err:    err,
	}
}

func (w *WebAnswerer) summarize(ctx context.Context, question string, result pipeline_type.SearchResult) (string, error) {
	prompt := SummaryPrompt(question, result)

	if w.fetcher != nil {
		content, err := w.fetcher.Fetch(ctx, result.Link)
		if err != nil {
			w.logger.Warn("Could not fetch page content",
				slog.String("link", result.Link),
				slog.String("error", err.Error()))
		} else if content != "" {
			prompt += "\nPage content: " + truncate(content, pageContentLength)
		}
	}

	summary, err := w.llm.CallLLM(ctx, w.llmConfig, prompt)
	if err != nil {
		return "", pipeline_type.NewRAGError(pipeline_type.GenerationError, "summarize "+result.Link, err)
	}
	return summary, nil
}

// SummaryPrompt asks for a one or two sentence summary of a search result.
func SummaryPrompt(question string, result pipeline_type.SearchResult) string {
	title := result.Title
	if title == "" {
		title = "N/A"
	}
	snippet := result.Snippet
	if snippet == "" {
		snippet = "No description"
	}
	return fmt.Sprintf("Create a concise 1-2 sentence summary of this page for someone researching '%s':\n"+
		"Title: %s\n"+
		"Snippet: %s", question, title, snippet)
}
