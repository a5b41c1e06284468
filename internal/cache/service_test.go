package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/crawl"
	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

// fakeCrawler counts runs and returns a canned result. The counter is
// mutex-guarded because the scheduler test reads it from another goroutine.
type fakeCrawler struct {
	mu     sync.Mutex
	runs   int
	result crawl.Result
}

func (f *fakeCrawler) Run(_ context.Context) crawl.Result {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	return f.result
}

func (f *fakeCrawler) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func successResult() crawl.Result {
	return crawl.Result{
		RunID: "run-1",
		Records: []directory.StartupRecord{
			{ID: "startup-aaaa1111", Name: "Tech Océan"},
		},
		Status:  directory.StatusSuccess,
		Message: "crawled 1 records from 1 pages",
	}
}

func newTestService(t *testing.T, crawler Crawler) *Service {
	t.Helper()
	store := NewStore(t.TempDir(), zap.NewNop())
	return NewService(store, crawler, nil, 10*time.Minute, zap.NewNop())
}

func TestRecordsCrawlsOnColdCache(t *testing.T) {
	crawler := &fakeCrawler{result: successResult()}
	svc := newTestService(t, crawler)

	records := svc.Records(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, 1, crawler.Runs())

	entry, ok := svc.Entry()
	require.True(t, ok)
	assert.Equal(t, directory.StatusSuccess, entry.Status)
}

func TestRecordsServesMemoryWithinTTL(t *testing.T) {
	crawler := &fakeCrawler{result: successResult()}
	svc := newTestService(t, crawler)

	svc.Records(context.Background())
	svc.Records(context.Background())
	svc.Records(context.Background())
	assert.Equal(t, 1, crawler.Runs(), "memory layer must absorb repeat reads")
}

func TestRecordsRefreshesWhenMemoryExpires(t *testing.T) {
	crawler := &fakeCrawler{result: successResult()}
	store := NewStore(t.TempDir(), zap.NewNop())
	svc := NewService(store, crawler, nil, 10*time.Minute, zap.NewNop())

	base := time.Now()
	svc.now = func() time.Time { return base }
	svc.Records(context.Background())

	// Memory expired but the disk cache is still fresh: no second crawl.
	svc.now = func() time.Time { return base.Add(11 * time.Minute) }
	svc.Records(context.Background())
	assert.Equal(t, 1, crawler.Runs())
}

func TestForceRefreshBypassesCache(t *testing.T) {
	crawler := &fakeCrawler{result: successResult()}
	svc := newTestService(t, crawler)

	svc.Records(context.Background())
	svc.ForceRefresh(context.Background())
	assert.Equal(t, 2, crawler.Runs())
}

func TestInitWarmsMemoryFromFreshDisk(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Save(successResult().Records, directory.StatusSuccess, "seeded"))

	crawler := &fakeCrawler{result: successResult()}
	svc := NewService(store, crawler, nil, 10*time.Minute, zap.NewNop())
	svc.Init(context.Background())

	records := svc.Records(context.Background())
	require.Len(t, records, 1)
	assert.Zero(t, crawler.Runs(), "warm cache must not trigger a crawl")
}

func TestScheduledRefreshRunsCrawl(t *testing.T) {
	crawler := &fakeCrawler{result: successResult()}
	svc := newTestService(t, crawler)

	sched := NewIntervalScheduler(time.Hour)
	require.NoError(t, svc.StartBackground(sched))
	// The interval scheduler fires once immediately.
	require.Eventually(t, func() bool { return crawler.Runs() >= 1 }, time.Second, 10*time.Millisecond)
	svc.Shutdown()
}
