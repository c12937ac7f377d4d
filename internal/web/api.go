package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/caffeineduck/loxpad/internal/snippets"
	"github.com/caffeineduck/loxpad/playground"
	"github.com/caffeineduck/loxpad/session"
	"github.com/go-chi/chi/v5"
)

type runRequest struct {
	Source  string `json:"source"`
	Timeout string `json:"timeout,omitempty"`
}

type runResponse struct {
	Mode       string `json:"mode"`
	Output     string `json:"output"`
	HTML       string `json:"html"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type shareRequest struct {
	Source string `json:"source"`
}

type shareResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Views     int    `json:"views,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRun performs one mode call on a throwaway session.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	mode, err := session.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}

	backend, err := s.cfg.Backend()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sess := session.New(backend, s.cfg.SessionOptions...)
	defer sess.Close()

	s.run(w, r, sess, mode, req)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, _, err := s.manager.create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

func (s *Server) handleSessionRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	mode, err := session.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	s.run(w, r, sess, mode, req)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.manager.close(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, sess *session.Session, mode session.Mode, req runRequest) {
	ctx := r.Context()
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid timeout"))
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var display playground.Recorder
	controller := playground.New(
		playground.StaticText(req.Source),
		sess,
		&display,
		playground.WithRenderer(s.cfg.Renderer),
		playground.WithLogger(s.logger),
	)
	result, err := controller.Handle(ctx, mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := runResponse{
		Mode:       mode.String(),
		Output:     result.Output,
		HTML:       display.HTML().String(),
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Error != nil {
		if errors.Is(result.Error, session.ErrSessionClosed) {
			writeError(w, http.StatusGone, result.Error)
			return
		}
		resp.Error = result.Error.Error()
		resp.ErrorKind = errorKind(result.Error)
		var ce *session.CompileError
		var re *session.RuntimeError
		switch {
		case errors.As(result.Error, &ce):
			resp.Line, resp.Column = ce.Line, ce.Column
		case errors.As(result.Error, &re):
			resp.Line = re.Line
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// errorKind classifies a failed call for API clients.
func errorKind(err error) string {
	var ce *session.CompileError
	var re *session.RuntimeError
	switch {
	case errors.Is(err, session.ErrTimeout):
		return "timeout"
	case errors.As(err, &ce):
		return "compile"
	case errors.As(err, &re):
		return "runtime"
	default:
		return "internal"
	}
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Snippets == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("sharing is disabled"))
		return
	}
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snippet, err := s.cfg.Snippets.Save(r.Context(), req.Source)
	switch {
	case errors.Is(err, snippets.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	case errors.Is(err, snippets.ErrCollision):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, shareResponse{ID: snippet.ID, URL: sharePath(snippet.ID)})
}

func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Snippets == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("sharing is disabled"))
		return
	}
	snippet, err := s.cfg.Snippets.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, snippets.ErrNotFound), errors.Is(err, snippets.ErrInvalid):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{
		ID:        snippet.ID,
		URL:       sharePath(snippet.ID),
		Source:    snippet.Source,
		CreatedAt: snippet.CreatedAt.UTC().Format(time.RFC3339),
		Views:     snippet.Views,
	})
}

func decodeRunRequest(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return req, false
	}
	return req, true
}

// decodeJSON reads a bounded JSON body. An empty body decodes as the zero
// value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
