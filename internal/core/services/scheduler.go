package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driving"
	"github.com/custodia-labs/querynest/internal/logger"
)

// DefaultRetryInterval is how often partly indexed documents are retried.
const DefaultRetryInterval = 5 * time.Minute

// RetryResult describes one pass over the library.
type RetryResult struct {
	StartedAt time.Time
	EndedAt   time.Time

	// Attempted counts documents that had failed sections.
	Attempted int

	// Completed counts documents that are fully indexed after the pass.
	Completed int
}

// RetryScheduler periodically reindexes documents whose sections failed
// to embed. Embedding failures are retryable, so a document left partial
// by an outage heals once the capability is back.
type RetryScheduler struct {
	documents driving.DocumentService
	interval  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	last    *RetryResult
}

// NewRetryScheduler creates a scheduler. A non-positive interval uses
// DefaultRetryInterval.
func NewRetryScheduler(documents driving.DocumentService, interval time.Duration) *RetryScheduler {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return &RetryScheduler{
		documents: documents,
		interval:  interval,
	}
}

// Start runs the retry loop. It blocks until Stop is called or ctx ends.
func (s *RetryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (s *RetryScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *RetryScheduler) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
}

// RunOnce retries every partly indexed document once.
func (s *RetryScheduler) RunOnce(ctx context.Context) RetryResult {
	result := RetryResult{StartedAt: time.Now()}

	docs, err := s.documents.List(ctx)
	if err != nil {
		logger.Warn("Retry: failed to list documents: %v", err)
		result.EndedAt = time.Now()
		s.record(result)
		return result
	}

	for _, pending := range Pending(docs) {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		doc, err := s.documents.Reindex(ctx, pending.ID)
		if err != nil {
			logger.Debug("Retry of %s still incomplete: %v", pending.Name, err)
			continue
		}
		if doc.FullyIndexed() {
			result.Completed++
			logger.Info("Retry completed the index of %s", doc.Name)
		}
	}

	result.EndedAt = time.Now()
	s.record(result)
	return result
}

func (s *RetryScheduler) record(r RetryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
}

// LastResult returns the most recent pass, or nil before the first one.
func (s *RetryScheduler) LastResult() *RetryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Pending lists documents that still have failed sections.
func Pending(docs []domain.Document) []domain.Document {
	var out []domain.Document
	for i := range docs {
		if !docs[i].FullyIndexed() {
			out = append(out, docs[i])
		}
	}
	return out
}
