// Package crawl drives pagination across the startup directory and aggregates
// extracted records.
package crawl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
	"github.com/lareunion-tech/startup-matcher/internal/extractor"
	"github.com/lareunion-tech/startup-matcher/internal/metrics"
	"github.com/lareunion-tech/startup-matcher/internal/normalizer"
)

// Fetcher retrieves and parses one page. Implemented by internal/fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// cardSelectors are tried in order on every listing page; the first selector
// returning non-empty matches wins.
var cardSelectors = []string{
	"article",
	"div.startup",
	"div.directory-item",
	"div.annuaire-item",
	".elementor-post",
	".elementor-grid-item",
	".elementor-widget-wrap",
	".elementor-element",
	".startup-item",
	".company-item",
	".directory-listing .item",
	".elementor-posts-container article",
}

// paginationSelectors locate an explicit next-page control.
var paginationSelectors = []string{
	"a.next",
	"a.next-page",
	"a.pagination-next",
	".nav-links a.next",
	`a[rel="next"]`,
}

// pageNumberSelectors locate numbered pagination links whose text is checked
// against the next page number.
var pageNumberSelectors = "a.page-numbers, .pagination a, .nav-links a"

// linkExclusions filters harvested outbound links that are clearly not
// startup detail pages.
var linkExclusions = []string{
	"wordpress", "wp-", "admin", "login", "facebook", "twitter", "linkedin",
}

// Config bounds the crawl.
type Config struct {
	BaseURL         string
	MaxPages        int
	DetailLinkLimit int
}

// Result is the outcome of one full crawl cycle.
type Result struct {
	RunID   string
	Records []directory.StartupRecord
	Status  directory.CrawlStatus
	Message string
	Pages   int
}

// Orchestrator walks the directory page by page, preferring detail-page
// extraction and falling back through card extraction, link harvesting, and
// finally the built-in sample dataset.
type Orchestrator struct {
	cfg       Config
	fetcher   Fetcher
	extractor *extractor.Extractor
	logger    *zap.Logger
	now       func() time.Time
}

// New builds an Orchestrator.
func New(cfg Config, fetcher Fetcher, ex *extractor.Extractor, logger *zap.Logger) *Orchestrator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.DetailLinkLimit <= 0 {
		cfg.DetailLinkLimit = 10
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: ex,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes a complete crawl cycle. It never returns an empty record set:
// when every strategy comes up dry the built-in sample dataset is returned
// with a fallback status.
func (o *Orchestrator) Run(ctx context.Context) Result {
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID))
	log.Info("starting directory crawl", zap.String("base_url", o.cfg.BaseURL))

	var records []directory.StartupRecord
	pagesFetched := 0

	for page := 1; page <= o.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		pageURL := o.pageURL(page)
		doc, err := o.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			metrics.ObserveCrawlPage("failed")
			log.Warn("page fetch failed, assuming end of directory",
				zap.Int("page", page), zap.Error(err))
			break
		}
		metrics.ObserveCrawlPage("ok")
		pagesFetched++

		pageRecords := o.extractFromPage(ctx, log, doc, pageURL)
		records = append(records, pageRecords...)
		log.Info("page processed",
			zap.Int("page", page),
			zap.Int("items", len(pageRecords)),
		)

		// An explicit pagination control keeps the crawl going even past an
		// unproductive page; without one, an empty page ends the crawl and a
		// productive page buys exactly one optimistic extra fetch.
		next := o.hasNextPage(doc, page)
		if len(pageRecords) == 0 && !next {
			break
		}
		if len(pageRecords) == 0 {
			log.Info("empty page but pagination control present, continuing", zap.Int("page", page))
		} else if !next {
			log.Info("no pagination control found, trying one more page", zap.Int("page", page))
		}
	}

	now := o.now()
	normalized := make([]directory.StartupRecord, 0, len(records))
	for _, rec := range records {
		rec.LastUpdated = now
		normalized = append(normalized, normalizer.Normalize(rec))
	}
	deduped := directory.DedupeByID(normalized)

	if len(deduped) == 0 {
		log.Warn("crawl exhausted all strategies, serving sample dataset",
			zap.Int("pages_fetched", pagesFetched))
		metrics.ObserveCrawlRun(string(directory.StatusFallback), 0)
		return Result{
			RunID:   runID,
			Records: directory.SampleRecords(now),
			Status:  directory.StatusFallback,
			Message: fmt.Sprintf("no records extracted after %d pages, using sample data", pagesFetched),
			Pages:   pagesFetched,
		}
	}

	log.Info("crawl finished",
		zap.Int("records", len(deduped)),
		zap.Int("pages", pagesFetched),
	)
	metrics.ObserveCrawlRun(string(directory.StatusSuccess), len(deduped))
	return Result{
		RunID:   runID,
		Records: deduped,
		Status:  directory.StatusSuccess,
		Message: fmt.Sprintf("crawled %d records from %d pages", len(deduped), pagesFetched),
		Pages:   pagesFetched,
	}
}

func (o *Orchestrator) pageURL(page int) string {
	if page == 1 {
		return o.cfg.BaseURL
	}
	base := o.cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return fmt.Sprintf("%spage/%d/", base, page)
}

// extractFromPage applies the card-selector cascade, visits detail pages when
// a card links to one, and harvests outbound links as a last resort.
func (o *Orchestrator) extractFromPage(
	ctx context.Context,
	log *zap.Logger,
	doc *goquery.Document,
	pageURL string,
) []directory.StartupRecord {
	cards := o.findCards(doc)
	if cards != nil {
		return o.extractFromCards(ctx, log, cards, pageURL)
	}

	links := o.harvestLinks(doc)
	if len(links) == 0 {
		return nil
	}
	log.Info("no cards matched, visiting harvested links", zap.Int("links", len(links)))
	var records []directory.StartupRecord
	for _, link := range links {
		rec := o.extractFromDetailPage(ctx, log, link)
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

func (o *Orchestrator) findCards(doc *goquery.Document) *goquery.Selection {
	for _, selector := range cardSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func (o *Orchestrator) extractFromCards(
	ctx context.Context,
	log *zap.Logger,
	cards *goquery.Selection,
	pageURL string,
) []directory.StartupRecord {
	var records []directory.StartupRecord
	cards.Each(func(_ int, card *goquery.Selection) {
		// Detail pages carry richer data (phone, logo, full description), so
		// follow the card's primary link first.
		if link := extractor.PrimaryLink(card, pageURL); link != "" {
			if rec := o.extractFromDetailPage(ctx, log, link); rec != nil {
				records = append(records, *rec)
				return
			}
		}
		if rec := o.extractor.ExtractCard(card, pageURL); rec != nil {
			records = append(records, *rec)
		}
	})
	return records
}

func (o *Orchestrator) extractFromDetailPage(ctx context.Context, log *zap.Logger, link string) *directory.StartupRecord {
	doc, err := o.fetcher.Fetch(ctx, link)
	if err != nil {
		log.Debug("detail page fetch failed", zap.String("url", link), zap.Error(err))
		return nil
	}
	return o.extractor.ExtractPage(doc, link)
}

// harvestLinks collects outbound links that could plausibly be startup detail
// pages, bounded by the configured limit.
func (o *Orchestrator) harvestLinks(doc *goquery.Document) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return true
		}
		if len(text) <= 3 || isExcludedLink(href) {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		links = append(links, href)
		return len(links) < o.cfg.DetailLinkLimit
	})
	return links
}

func isExcludedLink(href string) bool {
	lower := strings.ToLower(href)
	for _, skip := range linkExclusions {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

// hasNextPage looks for explicit pagination controls or a numbered link to
// page+1. A true result keeps the crawl going regardless of the page's yield;
// a false one is advisory when the page was productive, since the crawl loop
// still optimistically tries one more page.
func (o *Orchestrator) hasNextPage(doc *goquery.Document, page int) bool {
	for _, selector := range paginationSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}
	next := strconv.Itoa(page + 1)
	found := false
	doc.Find(pageNumberSelectors).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == next {
			found = true
			return false
		}
		return true
	})
	return found
}
