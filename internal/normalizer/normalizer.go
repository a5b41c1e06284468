// Package normalizer canonicalizes raw extracted records. Normalize is
// idempotent: applying it to already-normalized data changes nothing.
package normalizer

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

var emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)

// Normalize trims, defaults, and canonicalizes every field of a raw record.
func Normalize(rec directory.StartupRecord) directory.StartupRecord {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Description = strings.TrimSpace(rec.Description)
	rec.Domain = strings.TrimSpace(rec.Domain)
	rec.Location = strings.TrimSpace(rec.Location)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Contact = strings.TrimSpace(rec.Contact)
	rec.Email = strings.TrimSpace(rec.Email)
	rec.Phone = strings.TrimSpace(rec.Phone)
	rec.CEO = strings.TrimSpace(rec.CEO)
	rec.YearFounded = strings.TrimSpace(rec.YearFounded)
	rec.EmployeeCount = strings.TrimSpace(rec.EmployeeCount)
	rec.LogoURL = strings.TrimSpace(rec.LogoURL)

	rec.Tags = normalizeTags(rec.Tags)

	if rec.ID == "" && rec.Name != "" {
		rec.ID = IDForName(rec.Name)
	}
	if rec.Domain == "" && len(rec.Tags) > 0 {
		rec.Domain = rec.Tags[0]
	}
	if rec.URL != "" && !strings.HasPrefix(rec.URL, "http://") && !strings.HasPrefix(rec.URL, "https://") {
		rec.URL = "https://" + rec.URL
	}
	if rec.Email == "" && rec.Contact != "" {
		rec.Email = emailPattern.FindString(rec.Contact)
	}
	return rec
}

// IDForName derives the stable record id from a name: the same name always
// maps to the same id across recrawls, which is what merging keys on.
func IDForName(name string) string {
	sum := md5.Sum([]byte(name))
	return "startup-" + hex.EncodeToString(sum[:])[:8]
}

// normalizeTags coerces comma-delimited entries into individual tags, trims
// them, and drops empties and duplicates while preserving first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		for _, part := range strings.Split(raw, ",") {
			tag := strings.TrimSpace(part)
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
