package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Note is a user-authored memory unit. Timestamps are RFC3339 strings;
// UpdatedAt is refreshed on every content or star mutation, CreatedAt never
// changes.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
	IsStarred bool     `json:"isStarred"`
}

// NoteFilter selects a library view.
type NoteFilter string

const (
	FilterAll     NoteFilter = "all"
	FilterStarred NoteFilter = "starred"
	FilterRecent  NoteFilter = "recent"
)

// NewNote mints a note with a fresh id and matching timestamps.
func NewNote(title, content string, tags []string) Note {
	now := time.Now().UTC().Format(time.RFC3339)
	if tags == nil {
		tags = []string{}
	}
	return Note{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes UpdatedAt after a mutation.
func (n *Note) Touch() {
	n.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// DisplayTitle falls back to "Untitled" for notes saved without one.
func (n Note) DisplayTitle() string {
	if strings.TrimSpace(n.Title) == "" {
		return "Untitled"
	}
	return n.Title
}

// MatchesQuery reports whether q appears (case-insensitive) in the note's
// title, content, or any tag.
func (n Note) MatchesQuery(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// FilterNotes applies a library filter. "recent" keeps notes updated within
// the last seven days.
func FilterNotes(notes []Note, filter NoteFilter) []Note {
	switch filter {
	case FilterStarred:
		out := make([]Note, 0, len(notes))
		for _, n := range notes {
			if n.IsStarred {
				out = append(out, n)
			}
		}
		return out
	case FilterRecent:
		cutoff := time.Now().UTC().AddDate(0, 0, -7)
		out := make([]Note, 0, len(notes))
		for _, n := range notes {
			if t, err := time.Parse(time.RFC3339, n.UpdatedAt); err == nil && !t.Before(cutoff) {
				out = append(out, n)
			}
		}
		return out
	default:
		return notes
	}
}

// SearchNotes keeps notes matching q, preserving order.
func SearchNotes(notes []Note, q string) []Note {
	if strings.TrimSpace(q) == "" {
		return notes
	}
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if n.MatchesQuery(q) {
			out = append(out, n)
		}
	}
	return out
}
