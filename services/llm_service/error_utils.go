package llm_service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAIError is the error body returned by OpenAI-compatible chat APIs such as Groq.
type OpenAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

type OpenAIHttpError struct {
	StatusCode int
	Message    string
	ErrorType  string
	RawBody    string
}

func (e *OpenAIHttpError) Error() string {
	return fmt.Sprintf("LLM API error (HTTP %d): %s (Type: %s)", e.StatusCode, e.Message, e.ErrorType)
}

// newHttpError builds an OpenAIHttpError from a non-200 response, keeping the
// raw body when it is not in the usual error shape.
func newHttpError(resp *http.Response) *OpenAIHttpError {
	httpErr := &OpenAIHttpError{
		StatusCode: resp.StatusCode,
		Message:    "Unknown error",
		ErrorType:  "unknown",
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpErr
	}
	httpErr.RawBody = string(body)

	var apiErr OpenAIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		httpErr.Message = apiErr.Error.Message
		httpErr.ErrorType = apiErr.Error.Type
	}
	return httpErr
}
