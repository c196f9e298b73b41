// Package store persists notes and chat history in a local sqlite file. The
// interface mirrors a whole-collection blob store: LoadNotes returns the
// corpus newest-created-first, SaveNote upserts (new notes are prepended),
// and chat history is an append-only sequence that can be replaced
// wholesale.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/inkrlabs/inkr/internal/models"
)

// StorageError wraps a failed read or write against the local database.
// Callers treat it as non-fatal: failed loads degrade to empty collections,
// failed writes surface as an action notice.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			is_starred INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_position ON notes(position)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			note_id TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadNotes returns the full corpus in collection order (newest additions
// first; updates keep their slot).
func (s *Store) LoadNotes() ([]models.Note, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content, summary, tags, created_at, updated_at, is_starred
		FROM notes
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, storageErr("load notes", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// SaveNotes replaces the whole corpus, preserving the given order.
func (s *Store) SaveNotes(notes []models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("save notes", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM notes`); err != nil {
		return storageErr("save notes", err)
	}
	for i, n := range notes {
		if err := insertNote(tx, n, i); err != nil {
			return storageErr("save notes", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("save notes", err)
	}
	return nil
}

// SaveNote upserts by id. Existing notes are updated in place; new notes are
// prepended to the collection.
func (s *Store) SaveNote(n models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(nonNilTags(n.Tags))
	if err != nil {
		return storageErr("save note", err)
	}

	res, err := s.db.Exec(`
		UPDATE notes
		SET title = ?, content = ?, summary = ?, tags = ?, created_at = ?, updated_at = ?, is_starred = ?
		WHERE id = ?
	`, n.Title, n.Content, n.Summary, string(tags), n.CreatedAt, n.UpdatedAt, boolToInt(n.IsStarred), n.ID)
	if err != nil {
		return storageErr("save note", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO notes (id, position, title, content, summary, tags, created_at, updated_at, is_starred)
		VALUES (?, (SELECT COALESCE(MIN(position), 1) - 1 FROM notes), ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Content, n.Summary, string(tags), n.CreatedAt, n.UpdatedAt, boolToInt(n.IsStarred))
	if err != nil {
		return storageErr("save note", err)
	}
	return nil
}

func (s *Store) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return storageErr("delete note", err)
	}
	return nil
}

// GetNote returns the note by id, or ok=false when absent.
func (s *Store) GetNote(id string) (models.Note, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, title, content, summary, tags, created_at, updated_at, is_starred
		FROM notes
		WHERE id = ?
	`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return models.Note{}, false, nil
	}
	if err != nil {
		return models.Note{}, false, storageErr("get note", err)
	}
	return n, true, nil
}

// LoadChatHistory returns all messages oldest-first.
func (s *Store) LoadChatHistory() ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, role, content, timestamp, note_id
		FROM chat_messages
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, storageErr("load chat history", err)
	}
	defer rows.Close()

	msgs := make([]models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp, &m.NoteID); err != nil {
			return nil, storageErr("scan chat message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate chat history", err)
	}
	return msgs, nil
}

// SaveChatHistory replaces the whole history, preserving order.
func (s *Store) SaveChatHistory(msgs []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("save chat history", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chat_messages`); err != nil {
		return storageErr("save chat history", err)
	}
	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO chat_messages (id, role, content, timestamp, note_id)
			VALUES (?, ?, ?, ?, ?)
		`, m.ID, m.Role, m.Content, m.Timestamp, m.NoteID); err != nil {
			return storageErr("save chat history", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("save chat history", err)
	}
	return nil
}

// AddChatMessage appends one message to the durable history.
func (s *Store) AddChatMessage(m models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`
		INSERT INTO chat_messages (id, role, content, timestamp, note_id)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.Role, m.Content, m.Timestamp, m.NoteID); err != nil {
		return storageErr("add chat message", err)
	}
	return nil
}

// ClearAllData drops notes and chat history alike.
func (s *Store) ClearAllData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range []string{"notes", "chat_messages"} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			return storageErr("clear all data", err)
		}
	}
	return nil
}

func insertNote(tx *sql.Tx, n models.Note, position int) error {
	tags, err := json.Marshal(nonNilTags(n.Tags))
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO notes (id, position, title, content, summary, tags, created_at, updated_at, is_starred)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, position, n.Title, n.Content, n.Summary, string(tags), n.CreatedAt, n.UpdatedAt, boolToInt(n.IsStarred))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (models.Note, error) {
	var n models.Note
	var tags string
	var starred int
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Summary, &tags, &n.CreatedAt, &n.UpdatedAt, &starred); err != nil {
		return models.Note{}, err
	}
	n.IsStarred = starred == 1
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return n, nil
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	result := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, storageErr("scan note", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate notes", err)
	}
	return result, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
