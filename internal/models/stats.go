package models

import (
	"sort"
	"time"
)

// TagStat is one entry of the tag cloud: occurrence count plus a display
// weight scaled into [0.7, 1.5] relative to the most frequent tag.
type TagStat struct {
	Tag    string  `json:"tag"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// TagStats tallies tag frequency across notes, most frequent first. Ties
// keep first-seen order.
func TagStats(notes []Note) []TagStat {
	counts := map[string]int{}
	order := []string{}
	for _, n := range notes {
		for _, t := range n.Tags {
			if _, seen := counts[t]; !seen {
				order = append(order, t)
			}
			counts[t]++
		}
	}

	stats := make([]TagStat, 0, len(order))
	for _, tag := range order {
		stats = append(stats, TagStat{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	if len(stats) > 0 {
		max := stats[0].Count
		if max < 1 {
			max = 1
		}
		for i := range stats {
			stats[i].Weight = 0.7 + float64(stats[i].Count)/float64(max)*0.8
		}
	}
	return stats
}

// Insights is the aggregate snapshot behind the stats screen.
type Insights struct {
	TotalNotes   int `json:"totalNotes"`
	UpdatedWeek  int `json:"updatedThisWeek"`
	ChatMessages int `json:"chatMessages"`
	Summarized   int `json:"withSummary"`
	Starred      int `json:"starred"`
}

// ComputeInsights derives counters from the loaded corpus and chat history
// length.
func ComputeInsights(notes []Note, chatCount int) Insights {
	ins := Insights{TotalNotes: len(notes), ChatMessages: chatCount}
	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	for _, n := range notes {
		if t, err := time.Parse(time.RFC3339, n.UpdatedAt); err == nil && !t.Before(cutoff) {
			ins.UpdatedWeek++
		}
		if n.Summary != "" {
			ins.Summarized++
		}
		if n.IsStarred {
			ins.Starred++
		}
	}
	return ins
}
