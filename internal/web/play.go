package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/caffeineduck/loxpad/internal/snippets"
	"github.com/caffeineduck/loxpad/playground"
	"github.com/caffeineduck/loxpad/render"
	"github.com/caffeineduck/loxpad/session"
	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"
)

// PlaySignals are the datastar signals posted by the page.
type PlaySignals struct {
	Source string `json:"source"`
}

// sseDisplay shows controller output by patching the output region.
type sseDisplay struct {
	sse *datastar.ServerSentEventGenerator
}

func (d sseDisplay) ShowMarkup(f render.Fragment) error {
	return d.sse.PatchElementTempl(OutputRegion(f, false))
}

func (d sseDisplay) ShowText(text string) error {
	return d.sse.PatchElementTempl(OutputRegion(render.Literal(text), true))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, s.cfg.DefaultSource)
}

func (s *Server) handleSharedPage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Snippets == nil {
		http.NotFound(w, r)
		return
	}
	snippet, err := s.cfg.Snippets.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, snippets.ErrNotFound) || errors.Is(err, snippets.ErrInvalid) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderPage(w, r, snippet.Source)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, source string) {
	data := pageData{
		Title:   "Playground",
		Source:  source,
		Sharing: s.cfg.Snippets != nil,
		Backend: s.cfg.BackendName,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Page(data).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handlePlay runs one playground action for the browser's session and
// patches the output region once.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	mode, err := session.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// Read signals BEFORE creating SSE (SSE consumes the request body)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var signals PlaySignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "invalid signals: "+err.Error(), http.StatusBadRequest)
		return
	}

	// The cookie must be written before the SSE headers.
	sess, err := s.browserSession(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	controller := playground.New(
		playground.StaticText(signals.Source),
		sess,
		sseDisplay{sse: sse},
		playground.WithRenderer(s.cfg.Renderer),
		playground.WithLogger(s.logger),
	)
	if _, err := controller.Handle(r.Context(), mode); err != nil {
		s.logger.Warn("output patch failed", slog.Any("error", err))
	}
}

// browserSession returns the playground session bound to the request's
// cookie, creating one when the cookie is missing or its session expired.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	// A cookie that fails to decode yields a fresh session.
	cs, _ := s.sessionStore.Get(r, cookieName)
	if id, ok := cs.Values[cookieKey].(string); ok {
		if sess, ok := s.manager.get(id); ok {
			return sess, nil
		}
	}

	id, sess, err := s.manager.create()
	if err != nil {
		return nil, err
	}
	cs.Values[cookieKey] = id
	if err := cs.Save(r, w); err != nil {
		s.manager.close(id)
		return nil, err
	}
	return sess, nil
}

func (s *Server) handlePlayShare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var signals PlaySignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "invalid signals: "+err.Error(), http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)
	if s.cfg.Snippets == nil {
		_ = sse.PatchElementTempl(ShareError("sharing is disabled"))
		return
	}

	snippet, err := s.cfg.Snippets.Save(r.Context(), signals.Source)
	if err != nil {
		_ = sse.PatchElementTempl(ShareError(err.Error()))
		return
	}
	if err := sse.PatchElementTempl(ShareLink(sharePath(snippet.ID))); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func sharePath(id string) string {
	return "/s/" + id
}
