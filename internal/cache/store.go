// Package cache persists crawl results on disk and decides when they are
// still trustworthy.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

// ErrNoCache reports that no readable cache exists on disk. A corrupt cache is
// reported the same way: both cases mean "recrawl".
var ErrNoCache = errors.New("no usable cache entry")

const (
	infoFile = "cache_info.json"
	dataFile = "cache_data.json"

	errorMaxAge    = time.Hour
	fallbackMaxAge = 4 * time.Hour
	anyMaxAge      = 24 * time.Hour
)

// Store reads and writes the cache directory: one metadata record, one data
// record, plus timestamped snapshots of every crawl for audit.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore builds a Store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Save writes the crawl outcome atomically: data first, then the metadata
// record, then a timestamped snapshot. It is called after every crawl attempt,
// including ones that fell back to sample data.
func (s *Store) Save(records []directory.StartupRecord, status directory.CrawlStatus, message string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, dataFile), records); err != nil {
		return fmt.Errorf("write cache data: %w", err)
	}
	entry := directory.CacheEntry{
		LastUpdate:  s.now(),
		Status:      status,
		RecordCount: len(records),
		Message:     message,
	}
	if err := writeJSONAtomic(filepath.Join(s.dir, infoFile), entry); err != nil {
		return fmt.Errorf("write cache info: %w", err)
	}

	snapshot := fmt.Sprintf("startups_crawl_%s.json", s.now().Format("20060102_150405"))
	if err := writeJSONAtomic(filepath.Join(s.dir, snapshot), records); err != nil {
		// Snapshots are audit history, not serving state.
		s.logger.Warn("snapshot write failed", zap.String("file", snapshot), zap.Error(err))
	}
	return nil
}

// Load returns the cached records and their metadata. Missing or unreadable
// files yield ErrNoCache.
func (s *Store) Load() ([]directory.StartupRecord, directory.CacheEntry, error) {
	entry, err := s.loadEntry()
	if err != nil {
		return nil, directory.CacheEntry{}, err
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, dataFile))
	if err != nil {
		return nil, directory.CacheEntry{}, fmt.Errorf("%w: %v", ErrNoCache, err)
	}
	var records []directory.StartupRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.Warn("cache data unreadable, treating as absent", zap.Error(err))
		return nil, directory.CacheEntry{}, fmt.Errorf("%w: %v", ErrNoCache, err)
	}
	return records, entry, nil
}

// IsFresh evaluates the freshness policy in order and returns the first
// failing rule's reason.
func (s *Store) IsFresh() (bool, string) {
	entry, err := s.loadEntry()
	if err != nil {
		return false, "no cache entry found"
	}
	age := s.now().Sub(entry.LastUpdate)
	if entry.Status == directory.StatusError && age > errorMaxAge {
		return false, fmt.Sprintf("cache in error state and older than one hour (age %s)", age.Round(time.Minute))
	}
	if entry.Status == directory.StatusFallback && age > fallbackMaxAge {
		return false, fmt.Sprintf("cache holds fallback sample data and is older than four hours (age %s)", age.Round(time.Minute))
	}
	if age > anyMaxAge {
		return false, fmt.Sprintf("cache older than 24 hours (last update %s)", entry.LastUpdate.Format(time.RFC3339))
	}
	return true, ""
}

func (s *Store) loadEntry() (directory.CacheEntry, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, infoFile))
	if err != nil {
		return directory.CacheEntry{}, fmt.Errorf("%w: %v", ErrNoCache, err)
	}
	var entry directory.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn("cache info unreadable, treating as absent", zap.Error(err))
		return directory.CacheEntry{}, fmt.Errorf("%w: %v", ErrNoCache, err)
	}
	return entry, nil
}

func writeJSONAtomic(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
