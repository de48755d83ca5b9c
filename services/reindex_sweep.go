package services

import (
	"context"
	"time"

	"document-query-platform/internal/logger"
	"document-query-platform/models"

	"github.com/go-co-op/gocron"
)

// ReindexSweeper periodically retries documents whose vector indexing
// failed, so a transient embedding outage heals without operator action.
type ReindexSweeper struct {
	scheduler *gocron.Scheduler
	processor *DocumentProcessor
	registry  DocumentRegistry
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewReindexSweeper(processor *DocumentProcessor, registry DocumentRegistry) *ReindexSweeper {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &ReindexSweeper{
		scheduler: s,
		processor: processor,
		registry:  registry,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the sweep at the given interval and runs the scheduler
// in the background.
func (s *ReindexSweeper) Start(intervalMinutes int) error {
	interval := time.Duration(intervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Tag("reindex-sweep").Do(s.sweep)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Info("Re-index sweep scheduled", "interval", interval.String())
	return nil
}

// Stop halts the scheduler and cancels any in-flight sweep.
func (s *ReindexSweeper) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ReindexSweeper) sweep() error {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()

	docIDs, err := s.registry.ListByStatus(ctx, models.StatusIndexingFailed)
	if err != nil {
		logger.Error("Re-index sweep failed to list documents", "error", err)
		return err
	}
	if len(docIDs) == 0 {
		return nil
	}

	logger.Info("Re-index sweep starting", "pending", len(docIDs))
	for _, docID := range docIDs {
		if err := s.processor.RetryIndexing(ctx, docID); err != nil {
			logger.Error("Re-index sweep retry failed", "document_id", docID, "error", err)
		}
	}
	return nil
}
