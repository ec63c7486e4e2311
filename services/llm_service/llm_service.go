package llm_service

import (
	"context"
	"strconv"
)

// LLMService sends a single prompt to a chat completion model. The config map
// carries api_url, api_key, model_name and optionally temperature and
// max_attempts.
type LLMService interface {
	CallLLM(ctx context.Context, config map[string]interface{}, prompt string) (string, error)
}

// safeParseFloat reads a numeric config value that may arrive as a number or a string.
func safeParseFloat(value interface{}, defaultValue float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultValue
}

func safeParseInt(value interface{}, defaultValue int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
