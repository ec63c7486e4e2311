package answer_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/serisow/policybot/pipeline_type"
	"github.com/serisow/policybot/services/llm_service"
	"github.com/serisow/policybot/services/rag_service"
)

// DocumentTemperature keeps document answers close to the retrieved context.
const DocumentTemperature = 0.1

// Profile holds everything that differs between the policy and data answer paths.
type Profile struct {
	Name                string
	TopK                int
	Template            string
	Replacements        []Replacement
	MissingIndexMessage string
}

var PolicyProfile = Profile{
	Name:     pipeline_type.CorpusPolicy,
	TopK:     6,
	Template: PolicyPromptTemplate,
	Replacements: []Replacement{
		{Old: "According to RBI guidelines", New: "The regulations state"},
		{Old: "as per", New: ""},
		{Old: "per", New: ""},
	},
	MissingIndexMessage: "Failed to process documents. Please check the document paths.",
}

var DataProfile = Profile{
	Name:     pipeline_type.CorpusData,
	TopK:     4,
	Template: DataPromptTemplate,
	Replacements: []Replacement{
		{Old: "Based on the data", New: "The available information shows"},
		{Old: "according to", New: ""},
	},
	MissingIndexMessage: "Failed to process data documents. Please check the document paths.",
}

// Answerer produces the answer text for one source. Failures are reported in
// the result, never returned.
type Answerer interface {
	Answer(ctx context.Context, question string) pipeline_type.AnswerResult
}

// DocumentAnswerer answers from one prepared corpus.
type DocumentAnswerer struct {
	profile   Profile
	corpus    *rag_service.Corpus
	llm       llm_service.LLMService
	llmConfig map[string]interface{}
	logger    *slog.Logger
}

func NewDocumentAnswerer(profile Profile, corpus *rag_service.Corpus, llm llm_service.LLMService, llmConfig map[string]interface{}, logger *slog.Logger) *DocumentAnswerer {
	cfg := make(map[string]interface{}, len(llmConfig)+1)
	for k, v := range llmConfig {
		cfg[k] = v
	}
	cfg["temperature"] = DocumentTemperature

	return &DocumentAnswerer{
		profile:   profile,
		corpus:    corpus,
		llm:       llm,
		llmConfig: cfg,
		logger:    logger.With(slog.String("corpus", profile.Name)),
	}
}

func (a *DocumentAnswerer) Answer(ctx context.Context, question string) pipeline_type.AnswerResult {
	// A corpus that failed to build answers every question with its failure.
	if a.corpus != nil && a.corpus.Err != nil {
		return pipeline_type.AnswerResult{Answer: a.corpus.Message, Err: a.corpus.Err}
	}
	if a.corpus == nil || a.corpus.Index == nil {
		return pipeline_type.AnswerResult{
			Answer: a.profile.MissingIndexMessage,
			Err:    pipeline_type.NewRAGError(pipeline_type.RetrievalError, "answer "+a.profile.Name, pipeline_type.ErrIndexNotFound),
		}
	}

	a.logger.Info("Processing question", slog.String("question", question))
	start := time.Now()

	answer, err := a.answer(ctx, question)
	if err != nil {
		a.logger.Error("Error processing question",
			slog.String("question", question),
			slog.String("error", err.Error()))
		return pipeline_type.AnswerResult{
			Answer: fmt.Sprintf("An error occurred while getting %s answer: %s", a.profile.Name, err.Error()),
			Err:    err,
		}
	}

	a.logger.Info("Question processed",
		slog.Float64("elapsed_seconds", time.Since(start).Seconds()))
	return pipeline_type.AnswerResult{Answer: answer}
}

func (a *DocumentAnswerer) answer(ctx context.Context, question string) (string, error) {
	chunks, err := a.corpus.Index.Query(ctx, question, a.profile.TopK)
	if err != nil {
		return "", err
	}

	if a.logger.Enabled(ctx, slog.LevelDebug) {
		a.logger.Debug("Retrieved chunks", slog.String("chunks", spew.Sdump(chunks)))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	prompt := BuildPrompt(a.profile.Template, strings.Join(texts, "\n\n"), question)

	response, err := a.llm.CallLLM(ctx, a.llmConfig, prompt)
	if err != nil {
		return "", pipeline_type.NewRAGError(pipeline_type.GenerationError, "generate "+a.profile.Name+" answer", err)
	}

	return Sanitize(response, a.profile.Replacements), nil
}
