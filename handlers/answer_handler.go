package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/serisow/policybot/pipeline_type"
	"github.com/serisow/policybot/services/answer_service"
)

// AnswerHandler serves the question endpoints. Every answer, including
// failures, is returned with status 200; only malformed bodies are rejected.
type AnswerHandler struct {
	service *answer_service.Service
	logger  *slog.Logger
}

func NewAnswerHandler(service *answer_service.Service, logger *slog.Logger) *AnswerHandler {
	return &AnswerHandler{
		service: service,
		logger:  logger,
	}
}

func (h *AnswerHandler) PolicyAnswer(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.service.Policy)
}

func (h *AnswerHandler) DataAnswer(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.service.Data)
}

func (h *AnswerHandler) WebAnswer(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.service.Web)
}

func (h *AnswerHandler) CombinedAnswer(w http.ResponseWriter, r *http.Request) {
	question, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Combined(r.Context(), question))
}

func (h *AnswerHandler) answer(w http.ResponseWriter, r *http.Request, source answer_service.Answerer) {
	question, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	result := source.Answer(r.Context(), question)
	writeJSON(w, http.StatusOK, pipeline_type.AnswerResponse{Answer: result.Answer})
}

// decodeQuestion writes the error response itself and reports whether the
// handler should continue.
func (h *AnswerHandler) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req pipeline_type.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			h.logger.Error("Invalid question field", slog.String("error", err.Error()))
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "question must be a string"})
			return "", false
		}
		h.logger.Error("Failed to decode request body", slog.String("error", err.Error()))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	if req.Question == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "question is required"})
		return "", false
	}
	return *req.Question, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
