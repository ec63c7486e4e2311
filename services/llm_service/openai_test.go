package llm_service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestService() *OpenAIService {
	s := NewOpenAIService(slog.New(slog.NewTextHandler(io.Discard, nil)), 5*time.Second)
	s.retryDelay = time.Millisecond
	return s
}

func TestCallLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected authorization header %q", got)
		}
		var body struct {
			Model       string              `json:"model"`
			Temperature float64             `json:"temperature"`
			Messages    []map[string]string `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if body.Model != "llama3-8b-8192" || body.Temperature != 0.1 {
			t.Errorf("Unexpected model or temperature: %+v", body)
		}
		if len(body.Messages) != 1 || body.Messages[0]["content"] != "What is the repo rate?" {
			t.Errorf("Unexpected messages: %+v", body.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  The repo rate is 6.5%.\n"}}]}`))
	}))
	defer server.Close()

	config := map[string]interface{}{
		"api_url":     server.URL,
		"api_key":     "test-key",
		"model_name":  "llama3-8b-8192",
		"temperature": 0.1,
	}
	got, err := newTestService().CallLLM(context.Background(), config, "What is the repo rate?")
	if err != nil {
		t.Fatalf("Did not expect an error but got: %v", err)
	}
	if got != "The repo rate is 6.5%." {
		t.Errorf("Unexpected response %q", got)
	}
}

func TestCallLLMErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		maxAttempts int
		wantCalls   int32
		wantErr     string
	}{
		{
			name:        "single attempt by default",
			status:      http.StatusInternalServerError,
			body:        `{"error":{"message":"model overloaded","type":"server_error"}}`,
			wantCalls:   1,
			wantErr:     "model overloaded",
		},
		{
			name:        "retries when configured",
			status:      http.StatusBadGateway,
			body:        `upstream failure`,
			maxAttempts: 3,
			wantCalls:   3,
			wantErr:     "after 3 attempts",
		},
		{
			name:        "quota errors are not retried",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"message":"rate limit reached","type":"tokens"}}`,
			maxAttempts: 3,
			wantCalls:   1,
			wantErr:     "quota exceeded",
		},
		{
			name:      "malformed body",
			status:    http.StatusOK,
			body:      `{"choices":[]}`,
			wantCalls: 1,
			wantErr:   "unexpected response format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			config := map[string]interface{}{
				"api_url":    server.URL,
				"api_key":    "k",
				"model_name": "m",
			}
			if tt.maxAttempts > 0 {
				config["max_attempts"] = tt.maxAttempts
			}

			_, err := newTestService().CallLLM(context.Background(), config, "q")
			if err == nil {
				t.Fatal("Expected an error but got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestCallLLMHttpErrorDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	config := map[string]interface{}{"api_url": server.URL, "api_key": "bad", "model_name": "m"}
	_, err := newTestService().CallLLM(context.Background(), config, "q")

	var httpErr *OpenAIHttpError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *OpenAIHttpError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized || httpErr.ErrorType != "invalid_request_error" {
		t.Errorf("Unexpected error details: %+v", httpErr)
	}
}

func TestCallLLMMissingConfig(t *testing.T) {
	_, err := newTestService().CallLLM(context.Background(), map[string]interface{}{"api_key": "k", "model_name": "m"}, "q")
	if err == nil || !strings.Contains(err.Error(), "api_url") {
		t.Errorf("Expected missing api_url error, got %v", err)
	}
}
