package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/api/schemas"
	"github.com/nkratz/pagepilot/internal/browser/automation"
	"github.com/nkratz/pagepilot/internal/browser/override"
	"github.com/nkratz/pagepilot/internal/session"
)

var jsonit = jsoniter.ConfigCompatibleWithStandardLibrary

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req schemas.StartSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	sess, err := s.sessions.Start(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	if s.store != nil {
		if err := s.store.CreateSession(r.Context(), sess.ID, req.Metadata); err != nil {
			s.logger.Warn("failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	s.writeJSON(w, http.StatusCreated, schemas.StartSessionResponse{SessionID: sess.ID})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := s.sessions.End(id); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	if s.store != nil {
		if err := s.store.EndSession(r.Context(), id); err != nil {
			s.logger.Warn("failed to mark session ended", zap.String("session_id", id), zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("session history is disabled"))
		return
	}

	records, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []schemas.SessionRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req schemas.NavigateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	started := time.Now()
	var opts *schemas.NavigateOptions
	if req.Referer != "" {
		opts = &schemas.NavigateOptions{Referer: req.Referer}
	}
	err := sess.Page.Goto(r.Context(), req.URL, opts)
	s.record(r.Context(), sess.ID, schemas.ActionNavigate, mustJSON(req), nil, started, err)

	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req schemas.ClickRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Selector == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("selector is required"))
		return
	}

	started := time.Now()
	err := sess.Page.Click(r.Context(), req.Selector)
	s.record(r.Context(), sess.ID, schemas.ActionClick, mustJSON(req), nil, started, err)

	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAct streams progress over SSE while the instruction executes.
func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req schemas.ActRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Instruction == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("instruction is required"))
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream := func(ev schemas.StreamEvent) {
		payload, err := jsonit.Marshal(ev)
		if err != nil {
			return
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	stream(schemas.StreamEvent{Type: schemas.EventLog, Message: "planning action"})

	started := time.Now()
	result, err := sess.Page.Act(r.Context(), req.Instruction)

	var output json.RawMessage
	if result != nil {
		output = mustJSON(result)
	}
	s.record(r.Context(), sess.ID, schemas.ActionAct, mustJSON(req), output, started, err)

	if err != nil {
		stream(schemas.StreamEvent{Type: schemas.EventError, Message: err.Error()})
		return
	}
	stream(schemas.StreamEvent{Type: schemas.EventResult, Data: output})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req schemas.ExtractRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Instruction == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("instruction is required"))
		return
	}

	started := time.Now()
	data, err := sess.Page.Extract(r.Context(), req.Instruction, req.Schema)
	s.record(r.Context(), sess.ID, schemas.ActionExtract, mustJSON(req), data, started, err)

	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, json.RawMessage(data))
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req schemas.ObserveRequest
	if !s.decode(w, r, &req) {
		return
	}

	started := time.Now()
	actions, err := sess.Page.Observe(r.Context(), req.Instruction)

	var output json.RawMessage
	if actions != nil {
		output = mustJSON(actions)
	}
	s.record(r.Context(), sess.ID, schemas.ActionObserve, mustJSON(req), output, started, err)

	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if actions == nil {
		actions = []schemas.ObservedAction{}
	}
	s.writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("action history is disabled"))
		return
	}

	id := chi.URLParam(r, "sessionID")
	records, err := s.store.ListActions(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []schemas.ActionRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// -- helpers --

// session resolves the {sessionID} route parameter, writing the error
// response itself on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return nil, false
	}
	return sess, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := jsonit.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonit.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, schemas.ErrorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var notFound *override.ElementNotFoundError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, automation.ErrNoInferencer):
		return http.StatusNotImplemented
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// record persists one action outcome; persistence failures are logged, never
// surfaced to the client.
func (s *Server) record(ctx context.Context, sessionID string, kind schemas.ActionKind, input, output json.RawMessage, started time.Time, opErr error) {
	if s.store == nil {
		return
	}

	rec := &schemas.ActionRecord{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Kind:       kind,
		Input:      input,
		Output:     output,
		Status:     schemas.StatusCompleted,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if opErr != nil {
		rec.Status = schemas.StatusFailed
		rec.Error = opErr.Error()
	}

	if err := s.store.RecordAction(ctx, rec); err != nil {
		s.logger.Warn("failed to record action",
			zap.String("session_id", sessionID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func mustJSON(v any) json.RawMessage {
	payload, err := jsonit.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return payload
}
