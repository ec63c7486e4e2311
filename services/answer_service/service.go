package answer_service

import (
	"context"
	"log/slog"
	"time"

	"github.com/serisow/policybot/pipeline_type"
)

// Service is the application context shared by the HTTP handlers.
type Service struct {
	Policy Answerer
	Data   Answerer
	Web    Answerer
	logger *slog.Logger
}

func NewService(policy, data, web Answerer, logger *slog.Logger) *Service {
	return &Service{
		Policy: policy,
		Data:   data,
		Web:    web,
		logger: logger,
	}
}

// Combined queries policy, web and data in that order. Each source reports
// its own failure in its answer text.
func (s *Service) Combined(ctx context.Context, question string) pipeline_type.CombinedResponse {
	start := time.Now()

	policy := s.Policy.Answer(ctx, question)
	web := s.Web.Answer(ctx, question)
	data := s.Data.Answer(ctx, question)

	s.logger.Info("Combined question processed",
		slog.Bool("policy_ok", policy.Err == nil),
		slog.Bool("web_ok", web.Err == nil),
		slog.Bool("data_ok", data.Err == nil),
		slog.Float64("elapsed_seconds", time.Since(start).Seconds()))

	return pipeline_type.CombinedResponse{
		PolicyAnswer: policy.Answer,
		WebAnswer:    web.Answer,
		DataAnswer:   data.Answer,
	}
}
