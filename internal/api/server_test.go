package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/inkrlabs/inkr/internal/conversation"
	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
	"github.com/inkrlabs/inkr/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (c *fakeCompleter) Complete(messages []llm.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func newTestServer(t *testing.T, completer llm.Completer) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	conv := conversation.NewManager(st, completer, 8)
	return New(st, completer, conv, "127.0.0.1:0"), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	w := doJSON(t, srv.Handler(), "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCreateAndGetNote(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	h := srv.Handler()

	w := doJSON(t, h, "POST", "/api/notes", noteRequest{Title: "T", Content: "C", Tags: []string{"x"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[models.Note](t, w)
	if created.ID == "" {
		t.Fatal("created note has no id")
	}

	w = doJSON(t, h, "GET", "/api/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[models.Note](t, w)
	if got.Title != "T" || got.Content != "C" {
		t.Errorf("note round trip mismatch: %+v", got)
	}
}

func TestCreateNote_Empty(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	w := doJSON(t, srv.Handler(), "POST", "/api/notes", noteRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	w := doJSON(t, srv.Handler(), "GET", "/api/notes/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateNote(t *testing.T) {
	srv, h := newTestServerWithNote(t, "old title", "old content")

	w := doJSON(t, h, "PUT", "/api/notes/"+srv.noteID, noteRequest{Title: "new", Content: "updated"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[models.Note](t, w)
	if got.Title != "new" || got.Content != "updated" {
		t.Errorf("update mismatch: %+v", got)
	}
}

func TestDeleteNote(t *testing.T) {
	srv, h := newTestServerWithNote(t, "t", "c")

	w := doJSON(t, h, "DELETE", "/api/notes/"+srv.noteID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, h, "GET", "/api/notes/"+srv.noteID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("note still present after delete")
	}
}

func TestToggleStar(t *testing.T) {
	srv, h := newTestServerWithNote(t, "t", "c")

	w := doJSON(t, h, "POST", "/api/notes/"+srv.noteID+"/star", nil)
	got := decode[models.Note](t, w)
	if !got.IsStarred {
		t.Error("expected note starred after toggle")
	}

	w = doJSON(t, h, "POST", "/api/notes/"+srv.noteID+"/star", nil)
	got = decode[models.Note](t, w)
	if got.IsStarred {
		t.Error("expected star cleared after second toggle")
	}
}

func TestListNotes_FilterAndSearch(t *testing.T) {
	srv, st := newTestServer(t, &fakeCompleter{})
	h := srv.Handler()

	starred := models.NewNote("alpha", "about cats", nil)
	starred.IsStarred = true
	if err := st.SaveNote(starred); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveNote(models.NewNote("beta", "about dogs", nil)); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, h, "GET", "/api/notes?filter=starred", nil)
	notes := decode[[]models.Note](t, w)
	if len(notes) != 1 || notes[0].Title != "alpha" {
		t.Errorf("starred filter = %+v", notes)
	}

	w = doJSON(t, h, "GET", "/api/notes?q=dogs", nil)
	notes = decode[[]models.Note](t, w)
	if len(notes) != 1 || notes[0].Title != "beta" {
		t.Errorf("search = %+v", notes)
	}
}

func TestSummarizeNote(t *testing.T) {
	srv, h := newTestServerWithNoteAndReply(t, "a short summary")

	w := doJSON(t, h, "POST", "/api/notes/"+srv.noteID+"/summarize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	got := decode[models.Note](t, w)
	if got.Summary != "a short summary" {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestTagNote(t *testing.T) {
	srv, h := newTestServerWithNoteAndReply(t, "go, sql, notes")

	w := doJSON(t, h, "POST", "/api/notes/"+srv.noteID+"/tags", nil)
	got := decode[models.Note](t, w)
	if len(got.Tags) != 3 || got.Tags[0] != "go" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestRewriteNote_DoesNotPersist(t *testing.T) {
	srv, h := newTestServerWithNoteAndReply(t, "rewritten text")

	w := doJSON(t, h, "POST", "/api/notes/"+srv.noteID+"/rewrite", nil)
	body := decode[map[string]string](t, w)
	if body["content"] != "rewritten text" {
		t.Errorf("rewrite body = %v", body)
	}

	w = doJSON(t, h, "GET", "/api/notes/"+srv.noteID, nil)
	got := decode[models.Note](t, w)
	if got.Content == "rewritten text" {
		t.Error("rewrite should not persist")
	}
}

func TestAIAction_CompletionFailure(t *testing.T) {
	srv, st := newTestServer(t, &fakeCompleter{err: &llm.CompletionError{Status: 500, Err: errors.New("upstream")}})
	h := srv.Handler()

	note := models.NewNote("t", "c", nil)
	if err := st.SaveNote(note); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, h, "POST", "/api/notes/"+note.ID+"/summarize", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestChatSendAndState(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{reply: "the answer"})
	h := srv.Handler()

	w := doJSON(t, h, "POST", "/api/chat/send", chatSendRequest{Text: "question"})
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}
	state := decode[chatStateResponse](t, w)
	if len(state.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(state.Messages))
	}
	if state.Messages[1].Content != "the answer" {
		t.Errorf("assistant reply = %q", state.Messages[1].Content)
	}
	if len(state.FollowUps) == 0 {
		t.Error("expected follow-ups")
	}
}

func TestChatSend_FailureReturnsBadGateway(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{err: errors.New("down")})
	h := srv.Handler()

	w := doJSON(t, h, "POST", "/api/chat/send", chatSendRequest{Text: "question"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	state := decode[chatStateResponse](t, w)
	if len(state.Messages) != 2 {
		t.Errorf("expected user + synthetic messages, got %d", len(state.Messages))
	}
}

func TestChatClear(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{reply: "x"})
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/chat/send", chatSendRequest{Text: "question"})
	w := doJSON(t, h, "POST", "/api/chat/clear", nil)
	state := decode[chatStateResponse](t, w)
	if len(state.Messages) != 0 {
		t.Errorf("messages survived clear: %v", state.Messages)
	}
}

func TestChatSaveNote(t *testing.T) {
	srv, st := newTestServer(t, &fakeCompleter{reply: "Insightful reply"})
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/chat/send", chatSendRequest{Text: "question"})
	w := doJSON(t, h, "POST", "/api/chat/save-note", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	note := decode[models.Note](t, w)
	if note.Title != "Insightful reply" {
		t.Errorf("title = %q", note.Title)
	}

	notes, err := st.LoadNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Errorf("expected 1 persisted note, got %d", len(notes))
	}
}

func TestChatSaveNote_EmptyConversation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeCompleter{})
	w := doJSON(t, srv.Handler(), "POST", "/api/chat/save-note", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestInsightsAndTags(t *testing.T) {
	srv, st := newTestServer(t, &fakeCompleter{})
	h := srv.Handler()

	n := models.NewNote("t", "c", []string{"go", "go"})
	if err := st.SaveNote(n); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, h, "GET", "/api/insights", nil)
	insights := decode[models.Insights](t, w)
	if insights.TotalNotes != 1 {
		t.Errorf("TotalNotes = %d, want 1", insights.TotalNotes)
	}

	w = doJSON(t, h, "GET", "/api/tags", nil)
	stats := decode[[]models.TagStat](t, w)
	if len(stats) == 0 {
		t.Error("expected tag stats")
	}
}

// serverWithNote bundles a server with the id of a pre-seeded note.
type serverWithNote struct {
	*Server
	noteID string
}

func newTestServerWithNote(t *testing.T, title, content string) (serverWithNote, http.Handler) {
	t.Helper()
	return newTestServerWithNoteCompleter(t, title, content, &fakeCompleter{})
}

func newTestServerWithNoteAndReply(t *testing.T, reply string) (serverWithNote, http.Handler) {
	t.Helper()
	return newTestServerWithNoteCompleter(t, "seed title", "seed content", &fakeCompleter{reply: reply})
}

func newTestServerWithNoteCompleter(t *testing.T, title, content string, completer llm.Completer) (serverWithNote, http.Handler) {
	t.Helper()
	srv, st := newTestServer(t, completer)
	note := models.NewNote(title, content, nil)
	if err := st.SaveNote(note); err != nil {
		t.Fatal(err)
	}
	return serverWithNote{Server: srv, noteID: note.ID}, srv.Handler()
}
