// Package prompt renders selected notes into the message sequence sent to
// the completion endpoint.
package prompt

import (
	"strings"

	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
)

const chatSystem = "You are an intelligent assistant that helps users interact with their notes. You can answer questions about the notes, provide insights, and help with organization. Be helpful and concise."

const noteSeparator = "\n\n---\n\n"

// BuildContextBlock renders the selected notes as a single context string.
// An empty selection yields an empty string.
func BuildContextBlock(notes []models.Note) string {
	if len(notes) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(notes))
	for _, n := range notes {
		var sb strings.Builder
		sb.WriteString("Title: ")
		sb.WriteString(n.Title)
		sb.WriteString("\nContent: ")
		sb.WriteString(n.Content)
		sb.WriteString("\nTags: ")
		sb.WriteString(strings.Join(n.Tags, ", "))
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, noteSeparator)
}

// BuildMessages wraps a question and its context block into the fixed
// two-message shape. Prior turns are deliberately absent: every question is
// answered from freshly selected note context only.
func BuildMessages(question, contextBlock string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: chatSystem},
		{Role: llm.RoleUser, Content: "Based on these notes: " + contextBlock + "\n\nQuestion: " + question},
	}
}
