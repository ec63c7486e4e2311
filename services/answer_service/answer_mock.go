package answer_service

import (
	"context"

	"github.com/serisow/policybot/pipeline_type"
)

type MockAnswerer struct {
	AnswerFunc func(ctx context.Context, question string) pipeline_type.AnswerResult
}

func (m *MockAnswerer) Answer(ctx context.Context, question string) pipeline_type.AnswerResult {
	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, question)
	}
	return pipeline_type.AnswerResult{Answer: "mock answer"}
}
