package crawl

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/crawlchat/crawlchat/internal/metrics"
)

// FetcherConfig controls page fetch behavior.
type FetcherConfig struct {
	Timeout     time.Duration
	UserAgent   string
	BlobPrefix  string
	ContentType string
}

// PageFetcher fetches one URL, extracts title/paragraph text/same-domain
// links, persists the document, and records the outcome in the registry.
// A failed fetch is terminal for that URL within the run; there are no
// retries and failures never propagate to the caller.
type PageFetcher struct {
	cfg      FetcherConfig
	registry *Registry
	store    DocumentStore
	blobs    BlobStore
	hasher   Hasher
	base     *colly.Collector
	logger   *zap.Logger
}

// NewPageFetcher builds a PageFetcher. blobs and hasher are optional; when
// both are set the raw HTML body is archived as a snapshot, best effort.
func NewPageFetcher(
	cfg FetcherConfig,
	registry *Registry,
	store DocumentStore,
	blobs BlobStore,
	hasher Hasher,
	logger *zap.Logger,
) *PageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(
		colly.Async(false),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}
	base.SetRequestTimeout(cfg.Timeout)
	return &PageFetcher{
		cfg:      cfg,
		registry: registry,
		store:    store,
		blobs:    blobs,
		hasher:   hasher,
		base:     base,
		logger:   logger,
	}
}

// Fetch executes the per-URL pipeline. Duplicate URLs return an empty result
// without touching the registry; invalid URLs and transport, status, or store
// errors mark the URL failed and return an empty link list.
func (f *PageFetcher) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	if f.registry.Seen(req.URL) {
		return FetchResult{}
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		f.logger.Warn("invalid url format", zap.String("url", req.URL))
		return f.fail(req.URL, fmt.Errorf("invalid url format: %s", req.URL))
	}

	metrics.FetchStarted()
	defer metrics.FetchFinished()

	body, err := f.get(ctx, req.URL)
	if err != nil {
		f.logger.Error("fetch failed", zap.String("url", req.URL), zap.Error(err))
		return f.fail(req.URL, fmt.Errorf("fetch %s: %w", req.URL, err))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		f.logger.Error("parse failed", zap.String("url", req.URL), zap.Error(err))
		return f.fail(req.URL, fmt.Errorf("parse %s: %w", req.URL, err))
	}

	f.archiveSnapshot(ctx, req, body)

	record := Document{
		URL:       req.URL,
		Title:     pageTitle(doc),
		Content:   paragraphText(doc),
		SessionID: req.SessionID,
	}
	if err := f.store.Insert(ctx, record); err != nil {
		f.logger.Error("document insert failed", zap.String("url", req.URL), zap.Error(err))
		return f.fail(req.URL, fmt.Errorf("insert %s: %w", req.URL, err))
	}

	f.registry.MarkScraped(req.URL)
	metrics.PageScraped()
	f.logger.Info("page scraped", zap.String("url", req.URL))

	return FetchResult{Links: f.sameDomainLinks(doc, parsed.Scheme, req.Domain)}
}

func (f *PageFetcher) fail(rawURL string, err error) FetchResult {
	f.registry.MarkFailed(rawURL)
	metrics.PageFailed()
	return FetchResult{Err: err}
}

// get issues a single GET through a cloned collector, honoring ctx while the
// network call is in flight.
func (f *PageFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	collector := f.base.Clone()

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, err
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

func (f *PageFetcher) archiveSnapshot(ctx context.Context, req FetchRequest, body []byte) {
	if f.blobs == nil || f.hasher == nil {
		return
	}
	hash, err := f.hasher.Hash(body)
	if err != nil {
		f.logger.Warn("snapshot hash failed", zap.String("url", req.URL), zap.Error(err))
		return
	}
	path := snapshotPath(f.cfg.BlobPrefix, req.SessionID, hash)
	uri, err := f.blobs.PutObject(ctx, path, f.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		f.logger.Warn("snapshot archive failed", zap.String("url", req.URL), zap.Error(err))
		return
	}
	f.logger.Debug("snapshot archived", zap.String("url", req.URL), zap.String("blob_uri", uri))
}

func snapshotPath(prefix, sessionID, hash string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", sessionID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, sessionID, hash)
}

func pageTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "No Title"
	}
	return title
}

// paragraphText concatenates all paragraph text nodes in document order.
func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	return strings.Join(parts, "\n")
}

// sameDomainLinks collects anchor hrefs whose host is empty (relative) or
// equal to the crawl domain. Relative hrefs are resolved against
// scheme://domain. Malformed hrefs are skipped, never fatal to the fetch.
// The list may contain duplicates or already-seen URLs; filtering happens at
// dispatch time.
func (f *PageFetcher) sameDomainLinks(doc *goquery.Document, scheme, domain string) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		parsed, err := url.Parse(href)
		if err != nil {
			f.logger.Debug("skipping malformed link", zap.String("href", href), zap.Error(err))
			return
		}
		switch parsed.Host {
		case "":
			links = append(links, fmt.Sprintf("%s://%s%s", scheme, domain, href))
		case domain:
			links = append(links, href)
		}
	})
	return links
}
