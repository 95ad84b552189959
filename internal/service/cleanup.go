package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCleanupInterval  = 1 * time.Hour
	defaultCleanupRetention = 30 * 24 * time.Hour
)

// CleanupService periodically removes inactive relationships past the retention window.
type CleanupService struct {
	relationships *RelationshipService
	logger        *zap.Logger

	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewCleanupService(rs *RelationshipService, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		relationships: rs,
		logger:        logger,
		interval:      defaultCleanupInterval,
		retention:     defaultCleanupRetention,
		stopCh:        make(chan struct{}),
	}
}

func (s *CleanupService) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

func (s *CleanupService) SetRetention(d time.Duration) {
	if d >= 0 {
		s.retention = d
	}
}

// Start runs cleanup on a periodic schedule in a background goroutine.
func (s *CleanupService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("relationship cleanup started",
			zap.Duration("interval", s.interval),
			zap.Duration("retention", s.retention))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.RunOnce(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("relationship cleanup stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the cleanup loop. It is safe to call more than once.
func (s *CleanupService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// RunOnce performs a single sweep across every agent and returns the number of relationships removed.
func (s *CleanupService) RunOnce(ctx context.Context) int {
	removed := s.relationships.CleanupAll(ctx, s.retention)
	if removed > 0 {
		s.logger.Info("removed inactive relationships past retention",
			zap.Duration("retention", s.retention),
			zap.Int("count", removed))
	}
	return removed
}
