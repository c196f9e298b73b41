// Package enhance backfills AI summaries and tags for notes that are
// missing them, on a cron schedule.
package enhance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	rcron "github.com/robfig/cron/v3"

	"github.com/inkrlabs/inkr/internal/config"
	"github.com/inkrlabs/inkr/internal/llm"
	"github.com/inkrlabs/inkr/internal/models"
)

// NoteStore is the persistence slice the service needs.
type NoteStore interface {
	LoadNotes() ([]models.Note, error)
	SaveNote(models.Note) error
}

type Service struct {
	store     NoteStore
	completer llm.Completer
	schedule  string
	batchSize int

	mu   sync.Mutex
	cron *rcron.Cron
}

func NewService(store NoteStore, completer llm.Completer, cfg config.Enhance) *Service {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = config.DefaultEnhanceSpec
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = config.DefaultEnhanceBatch
	}
	return &Service{
		store:     store,
		completer: completer,
		schedule:  schedule,
		batchSize: batch,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = rcron.New(rcron.WithSeconds())
	_, err := s.cron.AddFunc(s.schedule, func() {
		n, err := s.RunOnce()
		if err != nil {
			log.Printf("[enhance] run failed: %v", err)
			return
		}
		log.Printf("[enhance] enriched %d notes", n)
	})
	if err != nil {
		return fmt.Errorf("register enhance schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Printf("[enhance] scheduled %q, batch size %d", s.schedule, s.batchSize)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
		log.Printf("[enhance] stopped")
	}
}

// RunOnce enriches up to the batch size of notes lacking a summary or tags.
// Per-note failures are logged and skipped so one bad note cannot stall the
// rest of the batch. UpdatedAt is left alone: backfill must not promote a
// note in recency ordering.
func (s *Service) RunOnce() (int, error) {
	notes, err := s.store.LoadNotes()
	if err != nil {
		return 0, fmt.Errorf("load notes: %w", err)
	}

	enriched := 0
	for _, note := range notes {
		if enriched >= s.batchSize {
			break
		}
		if strings.TrimSpace(note.Content) == "" {
			continue
		}
		needsSummary := strings.TrimSpace(note.Summary) == ""
		needsTags := len(note.Tags) == 0
		if !needsSummary && !needsTags {
			continue
		}

		if needsSummary {
			summary, err := llm.Summarize(s.completer, note.Content)
			if err != nil {
				log.Printf("[enhance] summarize note %s: %v", note.ID, err)
				continue
			}
			note.Summary = summary
		}
		if needsTags {
			tags, err := llm.GenerateTags(s.completer, note.Content)
			if err != nil {
				log.Printf("[enhance] tag note %s: %v", note.ID, err)
				continue
			}
			note.Tags = tags
		}

		if err := s.store.SaveNote(note); err != nil {
			log.Printf("[enhance] save note %s: %v", note.ID, err)
			continue
		}
		enriched++
	}
	return enriched, nil
}
