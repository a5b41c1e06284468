// Package directory defines the core types shared across subsystems.
package directory

import "time"

// CrawlStatus describes how the latest crawl cycle ended.
type CrawlStatus string

// Crawl status values persisted with every cache entry.
const (
	StatusSuccess  CrawlStatus = "success"
	StatusFallback CrawlStatus = "fallback"
	StatusError    CrawlStatus = "error"
)

// StartupRecord is one entry of the startup directory. Records are treated as
// immutable once normalized; a recrawl supersedes a record rather than
// mutating it in place.
type StartupRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	Domain        string    `json:"domain"`
	Location      string    `json:"location"`
	URL           string    `json:"url"`
	Contact       string    `json:"contact"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	CEO           string    `json:"ceo,omitempty"`
	YearFounded   string    `json:"year_founded,omitempty"`
	EmployeeCount string    `json:"employee_count,omitempty"`
	LogoURL       string    `json:"logo_url,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// CacheEntry is the metadata record written alongside cached crawl data.
type CacheEntry struct {
	LastUpdate  time.Time   `json:"last_update"`
	Status      CrawlStatus `json:"status"`
	RecordCount int         `json:"record_count"`
	Message     string      `json:"message"`
}

// Merge folds a newer sighting of the same entity into an existing record.
// Non-empty incoming fields win; tag sets are unioned preserving the order in
// which tags were first seen.
func Merge(existing, incoming StartupRecord) StartupRecord {
	out := existing
	out.Name = pick(incoming.Name, existing.Name)
	out.Description = pick(incoming.Description, existing.Description)
	out.Domain = pick(incoming.Domain, existing.Domain)
	out.Location = pick(incoming.Location, existing.Location)
	out.URL = pick(incoming.URL, existing.URL)
	out.Contact = pick(incoming.Contact, existing.Contact)
	out.Email = pick(incoming.Email, existing.Email)
	out.Phone = pick(incoming.Phone, existing.Phone)
	out.CEO = pick(incoming.CEO, existing.CEO)
	out.YearFounded = pick(incoming.YearFounded, existing.YearFounded)
	out.EmployeeCount = pick(incoming.EmployeeCount, existing.EmployeeCount)
	out.LogoURL = pick(incoming.LogoURL, existing.LogoURL)
	out.Tags = unionTags(existing.Tags, incoming.Tags)
	if !incoming.LastUpdated.IsZero() {
		out.LastUpdated = incoming.LastUpdated
	}
	return out
}

// DedupeByID keeps the first occurrence of each id, merging later duplicates
// into it.
func DedupeByID(records []StartupRecord) []StartupRecord {
	out := make([]StartupRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		if pos, seen := index[rec.ID]; seen {
			out[pos] = Merge(out[pos], rec)
			continue
		}
		index[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}

func pick(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func unionTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, set := range [][]string{existing, incoming} {
		for _, tag := range set {
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
