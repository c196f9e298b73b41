// Package retrieval picks the bounded, relevance-ranked slice of the note
// corpus to inject as context into a model prompt. Pure functions of
// (query, corpus); no state, no I/O.
package retrieval

import (
	"regexp"
	"sort"
	"strings"

	"github.com/inkrlabs/inkr/internal/models"
)

const DefaultLimit = 8

var termRegex = regexp.MustCompile(`[a-z0-9#]+`)

type scoredNote struct {
	note  models.Note
	score int
}

// Terms tokenizes a query: lower-cased, split on anything outside
// [a-z0-9#], tokens of length <= 2 dropped. Duplicates survive; a repeated
// term counts once per occurrence when scoring.
func Terms(query string) []string {
	tokens := termRegex.FindAllString(strings.ToLower(query), -1)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) > 2 {
			terms = append(terms, tok)
		}
	}
	return terms
}

// Select returns up to limit notes relevant to query, best first. Matching
// is plain substring containment over the note's title, content, summary and
// tags, so word fragments collide ("cat" matches "concatenate") — a recall
// over precision tradeoff. A query with no usable terms falls back to the
// most recently updated notes.
func Select(query string, corpus []models.Note, limit int) []models.Note {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(corpus) == 0 {
		return []models.Note{}
	}

	terms := Terms(query)
	if len(terms) == 0 {
		return mostRecent(corpus, limit)
	}

	scored := make([]scoredNote, 0, len(corpus))
	for _, n := range corpus {
		score := scoreNote(n, terms)
		if score > 0 {
			scored = append(scored, scoredNote{note: n, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].note.UpdatedAt > scored[j].note.UpdatedAt
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]models.Note, len(scored))
	for i, s := range scored {
		out[i] = s.note
	}
	return out
}

// scoreNote counts query terms contained in the note's haystack. A term
// contributes once per occurrence in terms, regardless of how often it
// appears in the note.
func scoreNote(n models.Note, terms []string) int {
	haystack := strings.ToLower(
		n.Title + " " + n.Content + " " + n.Summary + " " + strings.Join(n.Tags, " "))
	score := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			score++
		}
	}
	return score
}

// mostRecent keeps the limit most recently updated notes, newest first.
// Ties keep original corpus order.
func mostRecent(corpus []models.Note, limit int) []models.Note {
	out := append([]models.Note(nil), corpus...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
