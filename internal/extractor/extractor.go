// Package extractor turns document fragments into startup records via
// cascading selector strategies.
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phonePattern = regexp.MustCompile(`(?:\+262|0262)\s?[0-9]{2}\s?[0-9]{2}\s?[0-9]{2}`)
)

// minDescriptionLen filters heading/menu noise when hunting for a description
// on a detail page.
const minDescriptionLen = 50

// Config holds defaults applied when a field cannot be extracted.
type Config struct {
	FallbackLocation string
	FallbackDomain   string
}

// Extractor applies an ordered list of selector strategies to fragments and
// detail pages. The first strategy yielding a usable name wins; no name means
// the fragment is not a startup.
type Extractor struct {
	cfg Config
}

// nameStrategy tries one way of locating the record name in a selection.
type nameStrategy func(*goquery.Selection) string

// New builds an Extractor.
func New(cfg Config) *Extractor {
	if cfg.FallbackLocation == "" {
		cfg.FallbackLocation = "La Réunion"
	}
	if cfg.FallbackDomain == "" {
		cfg.FallbackDomain = "Technologie"
	}
	return &Extractor{cfg: cfg}
}

func selectorStrategy(selector string) nameStrategy {
	return func(s *goquery.Selection) string {
		return strings.TrimSpace(s.Find(selector).First().Text())
	}
}

var cardNameStrategies = []nameStrategy{
	selectorStrategy("h2"),
	selectorStrategy("h3"),
	selectorStrategy("h4"),
	selectorStrategy(".entry-title"),
	selectorStrategy(".startup-name"),
	selectorStrategy(".title"),
}

var pageNameStrategies = []nameStrategy{
	selectorStrategy("h1"),
	selectorStrategy(".entry-title"),
	selectorStrategy(".page-title"),
	selectorStrategy("h2"),
}

func firstName(s *goquery.Selection, strategies []nameStrategy) string {
	for _, strategy := range strategies {
		if name := strategy(s); name != "" {
			return name
		}
	}
	return ""
}

// ExtractCard pulls a record out of a listing-page fragment. It returns nil
// when no strategy yields a name.
func (e *Extractor) ExtractCard(card *goquery.Selection, baseURL string) *directory.StartupRecord {
	name := firstName(card, cardNameStrategies)
	if name == "" {
		return nil
	}
	rec := &directory.StartupRecord{
		Name:     name,
		Location: e.cfg.FallbackLocation,
		Domain:   e.cfg.FallbackDomain,
	}

	if desc := strings.TrimSpace(card.Find("p, .description, .excerpt, .content, .summary").First().Text()); desc != "" {
		rec.Description = desc
	} else {
		rec.Description = "Aucune description disponible"
	}

	if href, ok := card.Find(`a[href*="http"], .website, .url`).First().Attr("href"); ok {
		rec.URL = absoluteURL(baseURL, href)
	}

	if tagText := strings.TrimSpace(card.Find(".tags, .categories, .domain, .sector").First().Text()); tagText != "" {
		rec.Tags = splitTags(tagText)
		if len(rec.Tags) > 0 {
			rec.Domain = rec.Tags[0]
		}
	}

	if loc := strings.TrimSpace(card.Find(".location, .address").First().Text()); loc != "" {
		rec.Location = loc
	}

	e.extractCardContact(card, rec)
	return rec
}

func (e *Extractor) extractCardContact(card *goquery.Selection, rec *directory.StartupRecord) {
	contact := card.Find(`a[href^="mailto:"], .email, .contact`).First()
	if contact.Length() == 0 {
		return
	}
	if href, ok := contact.Attr("href"); ok && strings.HasPrefix(href, "mailto:") {
		email := strings.TrimPrefix(href, "mailto:")
		rec.Contact = email
		rec.Email = email
		return
	}
	rec.Contact = strings.TrimSpace(contact.Text())
	if email := emailPattern.FindString(rec.Contact); email != "" {
		rec.Email = email
	}
}

// ExtractPage pulls a record out of a dedicated detail page. Detail pages are
// richer than cards: multi-paragraph description, phone, logo.
func (e *Extractor) ExtractPage(doc *goquery.Document, pageURL string) *directory.StartupRecord {
	name := firstName(doc.Selection, pageNameStrategies)
	if name == "" {
		return nil
	}
	rec := &directory.StartupRecord{
		Name:     name,
		URL:      pageURL,
		Location: e.cfg.FallbackLocation,
		Domain:   e.cfg.FallbackDomain,
	}

	rec.Description = "Aucune description disponible"
	doc.Find("p, .description, .content").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) > minDescriptionLen {
			rec.Description = text
			return false
		}
		return true
	})

	var tags []string
	doc.Find(".tags a, .categories a, .domain a, .sector a, .tag, .category").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})
	if len(tags) > 0 {
		rec.Tags = tags
		rec.Domain = tags[0]
	}

	if loc := strings.TrimSpace(doc.Find(".location, .address, .city").First().Text()); loc != "" {
		rec.Location = loc
	} else if loc := findAddressText(doc); loc != "" {
		rec.Location = loc
	}

	var contacts []string
	if email := e.extractPageEmail(doc); email != "" {
		rec.Email = email
		contacts = append(contacts, "Email: "+email)
	}
	if phone := e.extractPagePhone(doc); phone != "" {
		rec.Phone = phone
		contacts = append(contacts, "Téléphone: "+phone)
	}
	rec.Contact = strings.Join(contacts, " | ")

	if src, ok := doc.Find(".logo img, .startup-logo img, .company-logo img").First().Attr("src"); ok {
		rec.LogoURL = absoluteURL(pageURL, src)
	}
	return rec
}

func (e *Extractor) extractPageEmail(doc *goquery.Document) string {
	var email string
	doc.Find(`a[href^="mailto:"], .email`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && strings.HasPrefix(href, "mailto:") {
			email = strings.TrimPrefix(href, "mailto:")
			return false
		}
		return true
	})
	if email != "" {
		return email
	}
	doc.Find("p, div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if match := emailPattern.FindString(s.Text()); match != "" {
			email = match
			return false
		}
		return true
	})
	return email
}

func (e *Extractor) extractPagePhone(doc *goquery.Document) string {
	var phone string
	doc.Find(`a[href^="tel:"], .phone, .tel`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
			phone = strings.TrimPrefix(href, "tel:")
			return false
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			phone = text
			return false
		}
		return true
	})
	if phone != "" {
		return phone
	}
	doc.Find("p, div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if match := phonePattern.FindString(s.Text()); match != "" {
			phone = match
			return false
		}
		return true
	})
	return phone
}

// PrimaryLink returns the absolute URL of the fragment's first anchor, or ""
// when the fragment has none. The orchestrator follows it to the detail page.
func PrimaryLink(card *goquery.Selection, baseURL string) string {
	href, ok := card.Find("a[href]").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return absoluteURL(baseURL, href)
}

// findAddressText scans free text for something that reads like a local
// address: the region name plus a commune prefix.
func findAddressText(doc *goquery.Document) string {
	var found string
	doc.Find("p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "réunion") {
			return true
		}
		for _, prefix := range []string{"saint-", "sainte-", "st-", "ste-"} {
			if strings.Contains(lower, prefix) {
				found = text
				return false
			}
		}
		return true
	})
	return found
}

func splitTags(text string) []string {
	parts := strings.Split(text, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseU, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseU.ResolveReference(ref).String()
}
