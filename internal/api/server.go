// Package api exposes the note library and conversation over HTTP for the
// web UI and local tooling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/inkrlabs/inkr/internal/conversation"
	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
	"github.com/inkrlabs/inkr/internal/store"
)

type Server struct {
	store     *store.Store
	completer llm.Completer
	conv      *conversation.Manager
	addr      string
	srv       *http.Server
}

func New(s *store.Store, completer llm.Completer, conv *conversation.Manager, addr string) *Server {
	return &Server{store: s, completer: completer, conv: conv, addr: addr}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Notes
	mux.HandleFunc("GET /api/notes", s.listNotes)
	mux.HandleFunc("POST /api/notes", s.createNote)
	mux.HandleFunc("GET /api/notes/{id}", s.getNote)
	mux.HandleFunc("PUT /api/notes/{id}", s.updateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.deleteNote)
	mux.HandleFunc("POST /api/notes/{id}/star", s.toggleStar)

	// Per-note AI actions
	mux.HandleFunc("POST /api/notes/{id}/summarize", s.summarizeNote)
	mux.HandleFunc("POST /api/notes/{id}/tags", s.tagNote)
	mux.HandleFunc("POST /api/notes/{id}/enhance", s.enhanceNote)
	mux.HandleFunc("POST /api/notes/{id}/rewrite", s.rewriteNote)

	// Library views
	mux.HandleFunc("GET /api/tags", s.tagStats)
	mux.HandleFunc("GET /api/insights", s.insights)

	// Conversation
	mux.HandleFunc("GET /api/chat", s.chatState)
	mux.HandleFunc("POST /api/chat/send", s.chatSend)
	mux.HandleFunc("POST /api/chat/regenerate", s.chatRegenerate)
	mux.HandleFunc("POST /api/chat/clear", s.chatClear)
	mux.HandleFunc("POST /api/chat/save-note", s.chatSaveNote)

	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.srv = &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		log.Printf("[api] listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.LoadNotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		notes = models.SearchNotes(notes, q)
	}
	if f := r.URL.Query().Get("filter"); f != "" {
		notes = models.FilterNotes(notes, models.NoteFilter(f))
	}

	writeJSON(w, http.StatusOK, notes)
}

type noteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "title or content is required")
		return
	}

	note := models.NewNote(req.Title, req.Content, req.Tags)
	if err := s.store.SaveNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note.Title = strings.TrimSpace(req.Title)
	note.Content = req.Content
	if req.Tags != nil {
		note.Tags = req.Tags
	}
	note.Touch()

	if err := s.store.SaveNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNote(r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleStar(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}

	note.IsStarred = !note.IsStarred
	note.Touch()
	if err := s.store.SaveNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) summarizeNote(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}

	summary, err := llm.Summarize(s.completer, note.Content)
	if err != nil {
		writeCompletionError(w, err)
		return
	}
	note.Summary = summary
	note.Touch()
	if err := s.store.SaveNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) tagNote(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}

	tags, err := llm.GenerateTags(s.completer, note.Content)
	if err != nil {
		writeCompletionError(w, err)
		return
	}
	note.Tags = tags
	note.Touch()
	if err := s.store.SaveNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) enhanceNote(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}

	enhanced, err := llm.Enhance(s.completer, note.Content)
	if err != nil {
		writeCompletionError(w, err)
		return
	}
	note.Content = enhanced
	note.Touch()
	if err := s.store.SaveNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// rewriteNote returns the rewritten text without persisting it; the client
// previews the result and saves through the normal update path.
func (s *Server) rewriteNote(w http.ResponseWriter, r *http.Request) {
	note, ok, err := s.loadNote(w, r)
	if err != nil || !ok {
		return
	}

	rewritten, err := llm.Rewrite(s.completer, note.Content)
	if err != nil {
		writeCompletionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": rewritten})
}

func (s *Server) tagStats(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.LoadNotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.TagStats(notes))
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.LoadNotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := s.store.LoadChatHistory()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.ComputeInsights(notes, len(history)))
}

type chatStateResponse struct {
	Messages     []models.ChatMessage `json:"messages"`
	FollowUps    []string             `json:"followUps"`
	ContextNotes []models.Note        `json:"contextNotes"`
}

func (s *Server) chatState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, chatStateResponse{
		Messages:     s.conv.Messages(),
		FollowUps:    s.conv.FollowUps(),
		ContextNotes: s.conv.ContextNotes(),
	})
}

type chatSendRequest struct {
	Text string `json:"text"`
}

func (s *Server) chatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.conv.Send(req.Text); err != nil {
		// The synthetic reply is already part of the state; tell the
		// client the turn failed anyway.
		writeJSON(w, http.StatusBadGateway, chatStateResponse{
			Messages:     s.conv.Messages(),
			FollowUps:    s.conv.FollowUps(),
			ContextNotes: s.conv.ContextNotes(),
		})
		return
	}
	s.chatState(w, r)
}

func (s *Server) chatRegenerate(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Regenerate(); err != nil {
		writeJSON(w, http.StatusBadGateway, chatStateResponse{
			Messages:     s.conv.Messages(),
			FollowUps:    s.conv.FollowUps(),
			ContextNotes: s.conv.ContextNotes(),
		})
		return
	}
	s.chatState(w, r)
}

func (s *Server) chatClear(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.chatState(w, r)
}

func (s *Server) chatSaveNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.conv.SaveReplyAsNote()
	if err != nil {
		if errors.Is(err, conversation.ErrNothingToSave) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// loadNote fetches the path's note and writes the error response itself
// when the note is missing or the store fails.
func (s *Server) loadNote(w http.ResponseWriter, r *http.Request) (models.Note, bool, error) {
	id := r.PathValue("id")
	note, ok, err := s.store.GetNote(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return models.Note{}, false, err
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("note %s not found", id))
		return models.Note{}, false, nil
	}
	return note, true, nil
}

func writeCompletionError(w http.ResponseWriter, err error) {
	var ce *llm.CompletionError
	if errors.As(err, &ce) {
		writeError(w, http.StatusBadGateway, ce.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
