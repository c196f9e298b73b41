// Package followup derives suggested next questions from an assistant reply
// and the context notes that produced it. Deterministic and pure.
package followup

import (
	"regexp"
	"sort"

	"github.com/inkrlabs/inkr/internal/models"
)

const MaxSuggestions = 5

var (
	summaryRegex = regexp.MustCompile(`(?i)summary|summarize`)
	listRegex    = regexp.MustCompile(`(?i)list|bullet`)
	todoRegex    = regexp.MustCompile(`(?i)todo|action`)
)

// Generate applies the suggestion rules in order, deduplicates keeping first
// occurrences, and caps the result at MaxSuggestions.
func Generate(answerText string, contextNotes []models.Note) []string {
	suggestions := make([]string, 0, 8)

	if summaryRegex.MatchString(answerText) {
		suggestions = append(suggestions, "Make it even shorter")
	}
	if listRegex.MatchString(answerText) {
		suggestions = append(suggestions, "Turn into action steps")
	}
	if !todoRegex.MatchString(answerText) {
		suggestions = append(suggestions, "Extract to-do items")
	}

	for _, tag := range topTags(contextNotes, 2) {
		suggestions = append(suggestions, "Show notes about "+tag)
	}

	suggestions = append(suggestions, "What am I writing about most recently?")

	return dedupe(suggestions, MaxSuggestions)
}

// topTags tallies tag frequency across the context notes and keeps the n
// most frequent; ties keep first-seen order.
func topTags(notes []models.Note, n int) []string {
	counts := map[string]int{}
	order := []string{}
	for _, note := range notes {
		for _, t := range note.Tags {
			if _, seen := counts[t]; !seen {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func dedupe(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, limit)
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
