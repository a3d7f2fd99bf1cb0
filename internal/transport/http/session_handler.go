package http

import (
	"encoding/json"
	"net/http"

	"summit-trivia-service/internal/app"
	"summit-trivia-service/internal/domain"

	"github.com/rs/zerolog"
)

// SessionHandler is the host-facing admin surface: session creation and
// removal, lobby configuration, question management, and the read endpoints
// the presentation layer polls.
type SessionHandler struct {
	service *app.GameService
	log     zerolog.Logger
}

func NewSessionHandler(service *app.GameService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{service: service, log: log}
}

// Register mounts the handler's routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.removeSession)
	mux.HandleFunc("PUT /sessions/{id}/threshold", h.setThreshold)
	mux.HandleFunc("GET /sessions/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /sessions/{id}/climb", h.climb)
	mux.HandleFunc("GET /sessions/{id}/questions", h.listQuestions)
	mux.HandleFunc("POST /sessions/{id}/questions", h.addQuestion)
	mux.HandleFunc("PUT /sessions/{id}/questions/{questionId}", h.updateQuestion)
	mux.HandleFunc("PUT /sessions/{id}/questions/{questionId}/enabled", h.setQuestionEnabled)
	mux.HandleFunc("DELETE /sessions/{id}/questions/{questionId}", h.deleteQuestion)
}

func (h *SessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	creds, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("create session failed")
		h.writeError(w, err)
		return
	}
	h.log.Info().Str("session", creds.Session.ID).Str("joinCode", creds.Session.JoinCode).Msg("session created")
	writeJSON(w, http.StatusCreated, creds)
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) removeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveSession(r.Context(), r.PathValue("id"), hostKey(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) setThreshold(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SummitThreshold float64 `json:"summitThreshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.service.SetSummitThreshold(r.PathValue("id"), hostKey(r), payload.SummitThreshold); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.GetLeaderboard(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *SessionHandler) climb(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.GetRopeClimbingState(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	// state is null between questions; that is a valid response body.
	writeJSON(w, http.StatusOK, state)
}

func (h *SessionHandler) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListQuestions(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *SessionHandler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var question domain.Question
	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	created, err := h.service.AddQuestion(r.Context(), r.PathValue("id"), hostKey(r), question)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SessionHandler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var question domain.Question
	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	question.ID = r.PathValue("questionId")
	if err := h.service.UpdateQuestion(r.Context(), r.PathValue("id"), hostKey(r), question); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) setQuestionEnabled(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	err := h.service.SetQuestionEnabled(r.Context(), r.PathValue("id"), hostKey(r), r.PathValue("questionId"), payload.Enabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuestion(r.Context(), r.PathValue("id"), hostKey(r), r.PathValue("questionId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindInvalidPhase:
		status = http.StatusUnprocessableEntity
	case domain.KindValidation:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorPayload{Message: err.Error(), Kind: kind})
}

func hostKey(r *http.Request) string {
	if key := r.Header.Get("X-Host-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("hostKey")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
