package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/serisow/policybot/pipeline_type"
	"github.com/serisow/policybot/services/answer_service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echo(prefix string) *answer_service.MockAnswerer {
	return &answer_service.MockAnswerer{
		AnswerFunc: func(ctx context.Context, q string) pipeline_type.AnswerResult {
			return pipeline_type.AnswerResult{Answer: prefix + ": " + q}
		},
	}
}

func newTestHandler() *AnswerHandler {
	service := answer_service.NewService(echo("policy"), echo("data"), echo("web"), testLogger())
	return NewAnswerHandler(service, testLogger())
}

func TestAnswerEndpoints(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		status  int
		want    string
	}{
		{"policy", h.PolicyAnswer, `{"question":"What is CRR?"}`, http.StatusOK, "policy: What is CRR?"},
		{"data", h.DataAnswer, `{"question":"GNPA"}`, http.StatusOK, "data: GNPA"},
		{"web", h.WebAnswer, `{"question":"KYC"}`, http.StatusOK, "web: KYC"},
		{"empty question is accepted", h.PolicyAnswer, `{"question":""}`, http.StatusOK, "policy: "},
		{"malformed json", h.PolicyAnswer, `{"question":`, http.StatusBadRequest, ""},
		{"missing question", h.DataAnswer, `{"query":"x"}`, http.StatusUnprocessableEntity, ""},
		{"wrong type", h.WebAnswer, `{"question":42}`, http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			tt.handler(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("Expected status %d, got %d (%s)", tt.status, rr.Code, rr.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp pipeline_type.AnswerResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Answer != tt.want {
				t.Errorf("Expected answer %q, got %q", tt.want, resp.Answer)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Unexpected content type %q", ct)
			}
		})
	}
}

func TestCombinedAnswer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/combined-answer", strings.NewReader(`{"question":"repo rate"}`))
	rr := httptest.NewRecorder()

	newTestHandler().CombinedAnswer(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	want := map[string]string{
		"policy_answer": "policy: repo rate",
		"web_answer":    "web: repo rate",
		"data_answer":   "data: repo rate",
	}
	for k, v := range want {
		if resp[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, resp[k])
		}
	}
	if len(resp) != 3 {
		t.Errorf("Expected exactly three keys, got %v", resp)
	}
}

func TestFailedAnswerIsStillOK(t *testing.T) {
	failing := &answer_service.MockAnswerer{
		AnswerFunc: func(ctx context.Context, q string) pipeline_type.AnswerResult {
			return pipeline_type.AnswerResult{
				Answer: "No valid policy documents found in the folder",
				Err:    pipeline_type.ErrNoDocuments,
			}
		},
	}
	h := NewAnswerHandler(answer_service.NewService(failing, echo("data"), echo("web"), testLogger()), testLogger())

	rr := httptest.NewRecorder()
	h.PolicyAnswer(rr, httptest.NewRequest(http.MethodPost, "/api/policy-answer", strings.NewReader(`{"question":"q"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No valid policy documents found in the folder") {
		t.Errorf("Unexpected body %s", rr.Body.String())
	}
}

func TestSystemHandler(t *testing.T) {
	triggered := 0
	h := NewSystemHandler(func() { triggered++ }, testLogger())

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health map[string]string
	json.NewDecoder(rr.Body).Decode(&health)
	if rr.Code != http.StatusOK || health["status"] != "ok" || health["message"] == "" {
		t.Errorf("Unexpected health response %d %v", rr.Code, health)
	}
	if triggered != 0 {
		t.Errorf("Health must not trigger shutdown")
	}

	rr = httptest.NewRecorder()
	h.Shutdown(rr, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
	var shutdown map[string]string
	json.NewDecoder(rr.Body).Decode(&shutdown)
	if rr.Code != http.StatusOK || !strings.Contains(shutdown["message"], "shutting down") {
		t.Errorf("Unexpected shutdown response %d %v", rr.Code, shutdown)
	}
	if triggered != 1 {
		t.Errorf("Expected shutdown to be triggered once, got %d", triggered)
	}
}
