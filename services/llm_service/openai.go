package llm_service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIService talks to any OpenAI-compatible chat completions endpoint.
// The default deployment points it at Groq.
type OpenAIService struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewOpenAIService(logger *slog.Logger, timeout time.Duration) *OpenAIService {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIService{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		retryDelay: 5 * time.Second,
	}
}

func (s *OpenAIService) CallLLM(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
	maxAttempts := safeParseInt(config["max_attempts"], 1)
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	modelName, _ := config["model_name"].(string)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := s.callChatCompletion(ctx, config, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err

		var httpErr *OpenAIHttpError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests {
				s.logger.Error("LLM API quota exceeded",
					slog.String("error_type", httpErr.ErrorType),
					slog.String("error_message", httpErr.Message),
					slog.String("model", modelName),
					slog.Int("status_code", httpErr.StatusCode))
				return "", fmt.Errorf("LLM quota exceeded: %s (Type: %s)", httpErr.Message, httpErr.ErrorType)
			}

			s.logger.Error("LLM API error",
				slog.Int("attempt", attempt),
				slog.Int("status_code", httpErr.StatusCode),
				slog.String("error_type", httpErr.ErrorType),
				slog.String("error_message", httpErr.Message),
				slog.String("raw_body", httpErr.RawBody))
		}

		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		s.logger.Warn("Attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_delay", s.retryDelay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}

	if maxAttempts > 1 {
		s.logger.Error("Error calling LLM API after multiple attempts",
			slog.Int("attempts", maxAttempts),
			slog.String("error", lastErr.Error()),
			slog.String("model", modelName))
		return "", fmt.Errorf("failed to call LLM API after %d attempts: %w", maxAttempts, lastErr)
	}
	return "", lastErr
}

func (s *OpenAIService) callChatCompletion(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
	apiURL, ok := config["api_url"].(string)
	if !ok || apiURL == "" {
		return "", fmt.Errorf("api_url not found in config")
	}

	apiKey, ok := config["api_key"].(string)
	if !ok {
		return "", fmt.Errorf("api_key not found in config")
	}

	modelName, ok := config["model_name"].(string)
	if !ok || modelName == "" {
		return "", fmt.Errorf("model_name not found in config")
	}

	payload := map[string]interface{}{
		"model": modelName,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if _, ok := config["temperature"]; ok {
		payload["temperature"] = safeParseFloat(config["temperature"], 0)
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newHttpError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}

	choices, ok := result["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", fmt.Errorf("unexpected response format from LLM API")
	}

	firstChoice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected choice format in LLM API response")
	}

	message, ok := firstChoice["message"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("message not found in LLM API response")
	}

	content, ok := message["content"].(string)
	if !ok {
		return "", fmt.Errorf("content not found in LLM API response")
	}

	return strings.TrimSpace(content), nil
}
