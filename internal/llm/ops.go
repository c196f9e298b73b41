package llm

import "strings"

const (
	summarizeSystem = "You are a helpful assistant that creates concise summaries of notes. Provide a clear, brief summary that captures the main points."

	tagsSystem = "You are a helpful assistant that generates relevant tags for notes. Return only 3-5 relevant tags as a comma-separated list."

	enhanceSystem = "You are a helpful assistant that enhances and improves notes. Make the content clearer, better organized, and more comprehensive while maintaining the original meaning."

	rewriteSystem = "You rewrite notes in clean, concise Apple Notes style markdown. Preserve factual meaning, remove redundancy, improve clarity, and structure with simple headings and lists where natural. Return ONLY the rewritten markdown (no extra commentary)."
)

// Summarize asks the model for a short summary of a note body.
func Summarize(c Completer, content string) (string, error) {
	return c.Complete([]Message{
		{Role: RoleSystem, Content: summarizeSystem},
		{Role: RoleUser, Content: "Please summarize this note: " + content},
	})
}

// GenerateTags asks for 3-5 tags and parses the comma-separated reply.
// Empty segments are dropped.
func GenerateTags(c Completer, content string) ([]string, error) {
	reply, err := c.Complete([]Message{
		{Role: RoleSystem, Content: tagsSystem},
		{Role: RoleUser, Content: "Generate tags for this note: " + content},
	})
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, 5)
	for _, part := range strings.Split(reply, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

// Enhance improves a note body while preserving its meaning.
func Enhance(c Completer, content string) (string, error) {
	return c.Complete([]Message{
		{Role: RoleSystem, Content: enhanceSystem},
		{Role: RoleUser, Content: "Please enhance this note: " + content},
	})
}

// Rewrite reformats a note body as concise markdown.
func Rewrite(c Completer, content string) (string, error) {
	return c.Complete([]Message{
		{Role: RoleSystem, Content: rewriteSystem},
		{Role: RoleUser, Content: "Rewrite this note in improved concise markdown style:\n\n" + content},
	})
}
