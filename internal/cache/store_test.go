package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), zap.NewNop())
}

func saveAt(t *testing.T, store *Store, when time.Time, status directory.CrawlStatus) {
	t.Helper()
	store.now = func() time.Time { return when }
	require.NoError(t, store.Save([]directory.StartupRecord{{ID: "startup-aaaa1111", Name: "Tech Océan"}}, status, "test"))
	store.now = time.Now
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	records := []directory.StartupRecord{
		{ID: "startup-aaaa1111", Name: "Tech Océan", Tags: []string{"IA"}},
		{ID: "startup-bbbb2222", Name: "AgriPéi"},
	}
	require.NoError(t, store.Save(records, directory.StatusSuccess, "crawled 2 records"))

	loaded, entry, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
	assert.Equal(t, directory.StatusSuccess, entry.Status)
	assert.Equal(t, 2, entry.RecordCount)
	assert.Equal(t, "crawled 2 records", entry.Message)
}

func TestSaveWritesTimestampedSnapshot(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save([]directory.StartupRecord{{ID: "startup-aaaa1111", Name: "X"}}, directory.StatusSuccess, ""))

	snapshots, err := filepath.Glob(filepath.Join(store.dir, "startups_crawl_*.json"))
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestLoadMissingCacheReturnsErrNoCache(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCache)
}

func TestLoadCorruptCacheTreatedAsAbsent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, infoFile), []byte("{not json"), 0o644))

	_, _, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCache)

	fresh, reason := store.IsFresh()
	assert.False(t, fresh)
	assert.Contains(t, reason, "no cache entry")
}

func TestIsFreshPolicy(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		status directory.CrawlStatus
		age    time.Duration
		fresh  bool
	}{
		{"recent success", directory.StatusSuccess, 30 * time.Minute, true},
		{"success under a day", directory.StatusSuccess, 23 * time.Hour, true},
		{"success over a day", directory.StatusSuccess, 25 * time.Hour, false},
		{"recent error", directory.StatusError, 30 * time.Minute, true},
		{"error over an hour", directory.StatusError, 2 * time.Hour, false},
		{"recent fallback", directory.StatusFallback, 3 * time.Hour, true},
		{"fallback over four hours", directory.StatusFallback, 5 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			saveAt(t, store, now.Add(-tc.age), tc.status)

			fresh, reason := store.IsFresh()
			assert.Equal(t, tc.fresh, fresh)
			if tc.fresh {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestStaleFallbackReasonMentionsFallback(t *testing.T) {
	store := newTestStore(t)
	saveAt(t, store, time.Now().Add(-5*time.Hour), directory.StatusFallback)

	fresh, reason := store.IsFresh()
	require.False(t, fresh)
	assert.Contains(t, reason, "fallback")
}
