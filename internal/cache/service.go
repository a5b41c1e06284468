package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/crawl"
	"github.com/lareunion-tech/startup-matcher/internal/curated"
	"github.com/lareunion-tech/startup-matcher/internal/directory"
	"github.com/lareunion-tech/startup-matcher/internal/metrics"
)

// Crawler runs one full crawl cycle. Implemented by crawl.Orchestrator.
type Crawler interface {
	Run(ctx context.Context) crawl.Result
}

// Service fronts the disk store with a short-lived memory layer and owns the
// read-check-crawl-write sequence. A single mutex serializes that sequence:
// concurrent callers block until the in-flight crawl completes and then
// observe its result instead of crawling again.
type Service struct {
	store   *Store
	crawler Crawler
	curated curated.Provider
	logger  *zap.Logger

	memTTL time.Duration
	now    func() time.Time

	mu        sync.Mutex
	memory    []directory.StartupRecord
	memoryAt  time.Time
	scheduler Scheduler
}

// NewService builds a Service. A nil curated provider degrades to the no-op
// implementation.
func NewService(
	store *Store,
	crawler Crawler,
	curatedStore curated.Provider,
	memTTL time.Duration,
	logger *zap.Logger,
) *Service {
	if curatedStore == nil {
		curatedStore = curated.NoOpProvider{}
	}
	if memTTL <= 0 {
		memTTL = 10 * time.Minute
	}
	return &Service{
		store:   store,
		crawler: crawler,
		curated: curatedStore,
		memTTL:  memTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// Init warms the memory layer from disk when the cache is fresh. It never
// crawls; first use triggers that if needed.
func (s *Service) Init(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fresh, _ := s.store.IsFresh(); !fresh {
		return
	}
	records, _, err := s.store.Load()
	if err != nil {
		return
	}
	s.memory = records
	s.memoryAt = s.now()
	s.logger.Info("cache warmed from disk", zap.Int("records", len(records)))
}

// StartBackground schedules the daily recrawl on sched. A failed scheduled
// run logs and waits for the next interval; it never crashes the process.
func (s *Service) StartBackground(sched Scheduler) error {
	s.mu.Lock()
	s.scheduler = sched
	s.mu.Unlock()
	return sched.Start(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled refresh panicked", zap.Any("panic", r))
			}
		}()
		s.logger.Info("scheduled refresh starting")
		s.refresh(context.Background(), "scheduled")
	})
}

// Shutdown stops the background task.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sched := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
	s.curated.Close()
}

// Records returns the current record set: the memory layer inside its
// freshness window, then fresh disk cache, then a new crawl.
func (s *Service) Records(ctx context.Context) []directory.StartupRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memory != nil && s.now().Sub(s.memoryAt) < s.memTTL {
		return s.memory
	}

	fresh, reason := s.store.IsFresh()
	if fresh {
		records, _, err := s.store.Load()
		if err == nil {
			s.memory = records
			s.memoryAt = s.now()
			return records
		}
		if !errors.Is(err, ErrNoCache) {
			s.logger.Warn("cache load failed", zap.Error(err))
		}
		reason = "cache unreadable"
	}
	s.logger.Info("refreshing startup data", zap.String("reason", reason))
	return s.refreshLocked(ctx, "stale")
}

// ForceRefresh bypasses every cache layer and recrawls now.
func (s *Service) ForceRefresh(ctx context.Context) []directory.StartupRecord {
	return s.refresh(ctx, "forced")
}

// CuratedRecords returns the persisted curated set. With no database
// configured it is empty.
func (s *Service) CuratedRecords(ctx context.Context) ([]directory.StartupRecord, error) {
	return s.curated.List(ctx)
}

// Entry exposes the current cache metadata, if any.
func (s *Service) Entry() (directory.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, entry, err := s.store.Load()
	if err != nil {
		return directory.CacheEntry{}, false
	}
	return entry, true
}

func (s *Service) refresh(ctx context.Context, trigger string) []directory.StartupRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx, trigger)
}

// refreshLocked runs the crawl and persists its outcome. Callers must hold mu.
func (s *Service) refreshLocked(ctx context.Context, trigger string) []directory.StartupRecord {
	metrics.ObserveCacheRefresh(trigger)
	result := s.crawler.Run(ctx)

	if err := s.store.Save(result.Records, result.Status, result.Message); err != nil {
		s.logger.Error("cache save failed", zap.Error(err))
	}
	if result.Status == directory.StatusSuccess {
		if _, err := s.curated.Merge(ctx, result.Records); err != nil {
			s.logger.Error("curated merge failed", zap.Error(err))
		}
	}

	s.memory = result.Records
	s.memoryAt = s.now()
	s.logger.Info("startup data refreshed",
		zap.String("trigger", trigger),
		zap.String("status", string(result.Status)),
		zap.Int("records", len(result.Records)),
	)
	return result.Records
}
