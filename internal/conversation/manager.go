// Package conversation owns the running chat state: the user/assistant
// message history, the context notes behind the latest reply, and the
// suggested follow-up questions. One Manager per conversation session.
package conversation

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/inkrlabs/inkr/internal/followup"
	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
	"github.com/inkrlabs/inkr/internal/prompt"
	"github.com/inkrlabs/inkr/internal/retrieval"
)

// ErrNothingToSave is returned by SaveReplyAsNote when the conversation
// holds no assistant message.
var ErrNothingToSave = errors.New("no assistant reply to save")

// errorReply is appended in place of an assistant message when the
// completion call fails. It is kept in memory but never persisted.
const errorReply = "Sorry, I hit an issue answering that. Please try again."

const fallbackTitle = "AI Insight"

// Store is the subset of persistence the Manager needs.
type Store interface {
	LoadNotes() ([]models.Note, error)
	SaveNote(models.Note) error
	LoadChatHistory() ([]models.ChatMessage, error)
	SaveChatHistory([]models.ChatMessage) error
	AddChatMessage(models.ChatMessage) error
}

// Manager serializes turns for a single conversation. At most one send or
// regenerate is in flight at a time; extra calls are silent no-ops.
type Manager struct {
	store        Store
	completer    llm.Completer
	contextLimit int

	mu           sync.Mutex
	sending      bool
	messages     []models.ChatMessage
	contextNotes []models.Note
	followUps    []string
}

// NewManager loads persisted chat history and returns a ready manager.
// A failed history load starts the conversation empty rather than failing.
func NewManager(store Store, completer llm.Completer, contextLimit int) *Manager {
	if contextLimit <= 0 {
		contextLimit = retrieval.DefaultLimit
	}
	m := &Manager{
		store:        store,
		completer:    completer,
		contextLimit: contextLimit,
	}
	history, err := store.LoadChatHistory()
	if err != nil {
		log.Printf("[conversation] load history: %v", err)
	} else {
		m.messages = history
	}
	return m
}

// Send runs one full turn for the given user text. Empty text and calls
// made while another turn is in flight are silent no-ops. The user and
// assistant messages are persisted together only after a successful
// completion; a failed turn leaves durable history untouched.
func (m *Manager) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	if m.sending {
		m.mu.Unlock()
		return nil
	}
	m.sending = true
	userMsg := models.NewChatMessage(models.RoleUser, text)
	m.messages = append(m.messages, userMsg)
	m.mu.Unlock()

	assistant, err := m.completeTurn(text)
	if err == nil {
		if perr := m.store.AddChatMessage(userMsg); perr != nil {
			log.Printf("[conversation] persist user message: %v", perr)
		}
		if perr := m.store.AddChatMessage(assistant); perr != nil {
			log.Printf("[conversation] persist assistant message: %v", perr)
		}
	}

	m.mu.Lock()
	m.sending = false
	m.mu.Unlock()
	return err
}

// completeTurn selects context, asks the model, and appends the reply to
// the in-memory history. On completion failure a synthetic assistant
// message is appended in memory and the error is returned so callers can
// notify the user. Persistence is the caller's concern.
func (m *Manager) completeTurn(question string) (models.ChatMessage, error) {
	notes, err := m.store.LoadNotes()
	if err != nil {
		log.Printf("[conversation] load notes: %v", err)
		notes = nil
	}
	ctxNotes := retrieval.Select(question, notes, m.contextLimit)
	messages := prompt.BuildMessages(question, prompt.BuildContextBlock(ctxNotes))

	reply, err := m.completer.Complete(messages)
	if err != nil {
		m.mu.Lock()
		m.messages = append(m.messages, models.NewChatMessage(models.RoleAssistant, errorReply))
		m.mu.Unlock()
		return models.ChatMessage{}, err
	}

	assistant := models.NewChatMessage(models.RoleAssistant, reply)
	m.mu.Lock()
	m.messages = append(m.messages, assistant)
	m.contextNotes = ctxNotes
	m.followUps = followup.Generate(reply, ctxNotes)
	m.mu.Unlock()
	return assistant, nil
}

// Regenerate replays the last user question. The trailing message is
// removed first if and only if it is an assistant message, so repeated
// regenerations never stack replies or drop user turns. Durable history is
// rewritten only after the replacement reply arrives; a failed attempt
// keeps the previously persisted turn. No-op while a turn is in flight or
// when no user question exists.
func (m *Manager) Regenerate() error {
	m.mu.Lock()
	if m.sending {
		m.mu.Unlock()
		return nil
	}
	question := lastUserQuestion(m.messages)
	if question == "" {
		m.mu.Unlock()
		return nil
	}
	if n := len(m.messages); n > 0 && m.messages[n-1].Role == models.RoleAssistant {
		m.messages = m.messages[:n-1]
	}
	m.sending = true
	m.mu.Unlock()

	_, err := m.completeTurn(question)
	if err == nil {
		m.mu.Lock()
		snapshot := durableHistory(m.messages)
		m.mu.Unlock()
		if perr := m.store.SaveChatHistory(snapshot); perr != nil {
			log.Printf("[conversation] rewrite history: %v", perr)
		}
	}

	m.mu.Lock()
	m.sending = false
	m.mu.Unlock()
	return err
}

// Clear wipes the conversation and persists the empty history. There is no
// undo; callers confirm with the user first.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.messages = nil
	m.contextNotes = nil
	m.followUps = nil
	m.mu.Unlock()
	return m.store.SaveChatHistory(nil)
}

// SaveReplyAsNote turns the most recent assistant reply into a note and
// persists it. Returns ErrNothingToSave when no assistant message exists.
func (m *Manager) SaveReplyAsNote() (models.Note, error) {
	m.mu.Lock()
	var reply string
	found := false
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == models.RoleAssistant {
			reply = m.messages[i].Content
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return models.Note{}, ErrNothingToSave
	}

	note := models.NewNote(replyTitle(reply), reply, nil)
	note.Summary = truncate(reply, 140)
	if err := m.store.SaveNote(note); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// Messages returns a copy of the current history.
func (m *Manager) Messages() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChatMessage(nil), m.messages...)
}

// FollowUps returns the suggestions computed after the latest successful turn.
func (m *Manager) FollowUps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.followUps...)
}

// ContextNotes returns the notes used as context for the latest successful turn.
func (m *Manager) ContextNotes() []models.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Note(nil), m.contextNotes...)
}

// isSynthetic reports whether msg is the in-memory error reply. Synthetic
// replies carry the fixed apology text and are never written to the store.
func isSynthetic(msg models.ChatMessage) bool {
	return msg.Role == models.RoleAssistant && msg.Content == errorReply
}

// durableHistory strips failed turns from the in-memory history: synthetic
// replies and the user message each one answered.
func durableHistory(messages []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages))
	for i, msg := range messages {
		if isSynthetic(msg) {
			continue
		}
		if msg.Role == models.RoleUser && i+1 < len(messages) && isSynthetic(messages[i+1]) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func lastUserQuestion(messages []models.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func replyTitle(reply string) string {
	line, _, _ := strings.Cut(reply, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return fallbackTitle
	}
	return truncate(line, 60)
}

// truncate cuts s to at most n characters without splitting a multibyte
// rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
