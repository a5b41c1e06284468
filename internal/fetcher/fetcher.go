// Package fetcher implements the page-fetch boundary using gocolly. It is the
// only component in the service that performs network I/O.
package fetcher

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// ErrNotHTML is returned when the response's declared content type is not
// HTML. It is terminal: retrying will not change the content type.
var ErrNotHTML = errors.New("response is not HTML")

// Config controls collector and retry behavior.
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	DelayMin   time.Duration
	DelayMax   time.Duration
}

// Fetcher retrieves and parses pages with politeness delays and jittered
// exponential backoff between attempts.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger

	// backoffUnit scales the 2^attempt backoff; overridden in tests.
	backoffUnit time.Duration
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Clones share the visited-URL store, and colly marks a URL visited
	// before the request runs. Without revisits every retry and every crawl
	// cycle after the first would abort with AlreadyVisitedError.
	c.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
		backoffUnit:   time.Second,
	}
}

// Fetch executes an HTTP GET for url and parses the body into a document
// tree. Each attempt is preceded by a randomized politeness delay; failed
// attempts are retried with exponential backoff until the retry budget is
// exhausted, at which point the final cause is returned.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if err := pause(ctx, randomBetween(f.cfg.DelayMin, f.cfg.DelayMax)); err != nil {
			return nil, err
		}
		f.logger.Debug("fetching page",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.cfg.MaxRetries),
		)

		doc, err := f.fetchOnce(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if errors.Is(err, ErrNotHTML) || ctx.Err() != nil {
			break
		}
		if attempt < f.cfg.MaxRetries-1 {
			wait := f.backoff(attempt)
			f.logger.Warn("fetch attempt failed, backing off",
				zap.String("url", url),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			if err := pause(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	f.logger.Error("fetch failed after all attempts",
		zap.String("url", url),
		zap.Int("attempts", f.cfg.MaxRetries),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*goquery.Document, error) {
	var (
		body        []byte
		contentType string
		fetchErr    error
	)
	collector := f.baseCollector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
		contentType = r.Headers.Get("Content-Type")
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit failed: %w", err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("response failed: %w", fetchErr)
	}
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("%w: got %q", ErrNotHTML, contentType)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Url = mustParseURL(url)
	return doc, nil
}

// backoff returns 2^attempt units plus up to one unit of jitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt)) * float64(f.backoffUnit))
	return base + randomJitter(f.backoffUnit)
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + randomJitter(max-min)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
