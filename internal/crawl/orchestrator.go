package crawl

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlchat/crawlchat/internal/metrics"
)

// OrchestratorConfig controls the frontier loop and ingestion batching.
type OrchestratorConfig struct {
	MaxWorkers int
	URLLimit   int
	BatchSize  int
	Topic      string
}

// Orchestrator drives the bounded frontier-expansion loop: rounds are
// strictly sequential, fetches within a round run unordered on a bounded
// worker pool, and the accumulated documents are handed to the ingestor once
// the frontier drains or the URL limit is reached.
type Orchestrator struct {
	cfg       OrchestratorConfig
	fetcher   Fetcher
	registry  *Registry
	status    *Status
	store     DocumentStore
	index     VectorIndex
	ingestor  *Ingestor
	publisher Publisher
	logger    *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. publisher is optional.
func NewOrchestrator(
	cfg OrchestratorConfig,
	fetcher Fetcher,
	registry *Registry,
	status *Status,
	store DocumentStore,
	index VectorIndex,
	ingestor *Ingestor,
	publisher Publisher,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.URLLimit <= 0 {
		cfg.URLLimit = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		registry:  registry,
		status:    status,
		store:     store,
		index:     index,
		ingestor:  ingestor,
		publisher: publisher,
		logger:    logger,
	}
}

// Start runs one crawl to completion and returns its summary. This is the
// single fatal-vs-recovered boundary for the whole run: per-URL and per-batch
// failures are absorbed below, anything else lands here, stamps the status
// record, and surfaces as Success=false. The status flags are never left
// stuck after an error.
func (o *Orchestrator) Start(ctx context.Context, seedURL, sessionID string) Result {
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))

	res, err := o.run(ctx, seedURL, sessionID, logger)
	if err != nil {
		o.status.Update(
			WithScraping(false),
			WithUpserting(false),
			WithCompleted(true),
			WithMessage(fmt.Sprintf("Error: %s", err.Error())),
		)
		logger.Error("crawl run failed", zap.Error(err))
		metrics.CrawlRun("error")
		res = Result{
			Success: false,
			Scraped: o.registry.CountScraped(),
			Failed:  o.registry.CountFailed(),
			Err:     err,
		}
	} else {
		metrics.CrawlRun("success")
	}

	o.publishSummary(ctx, runID, seedURL, sessionID, res, logger)
	return res
}

func (o *Orchestrator) run(
	ctx context.Context,
	seedURL, sessionID string,
	logger *zap.Logger,
) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panic: %v", r)
		}
	}()

	seed, err := url.Parse(seedURL)
	if err != nil || seed.Scheme == "" || seed.Host == "" {
		return Result{}, fmt.Errorf("invalid seed url %q", seedURL)
	}

	// Clean slate: per-run registry reset, fresh index collection, empty
	// document store. Failing to clean is run-fatal; a stale collection
	// would silently mix sessions.
	o.registry.Reset()
	if err := o.index.Recreate(ctx); err != nil {
		return Result{}, fmt.Errorf("recreate index: %w", err)
	}
	if err := o.store.Clear(ctx); err != nil {
		return Result{}, fmt.Errorf("clear document store: %w", err)
	}

	o.status.Update(WithScraping(true), WithMessage("Starting scraping process..."))

	domain := seed.Host
	frontier := []string{seedURL}
	for len(frontier) > 0 && o.registry.CountScraped() < o.cfg.URLLimit {
		dispatch := o.dispatchList(frontier)
		frontier = o.runRound(ctx, dispatch, domain, sessionID, logger)
	}

	scraped := o.registry.CountScraped()
	logger.Info("scraping finished",
		zap.Int("scraped", scraped),
		zap.Int("failed", o.registry.CountFailed()),
		zap.Int("limit", o.cfg.URLLimit),
	)

	o.status.Update(WithScraping(false))
	if scraped > 0 {
		o.status.Update(WithUpserting(true), WithMessage("Upserting to vector database..."))
		if err := o.ingestor.Ingest(ctx, o.cfg.BatchSize); err != nil {
			return Result{}, fmt.Errorf("ingest: %w", err)
		}
		o.status.Update(WithUpserting(false), WithCompleted(true), WithMessage("Process completed successfully"))
	} else {
		o.status.Update(WithCompleted(true), WithMessage("No pages scraped"))
	}

	return Result{
		Success:      true,
		Scraped:      scraped,
		Failed:       o.registry.CountFailed(),
		LimitReached: scraped >= o.cfg.URLLimit,
	}, nil
}

// dispatchList filters the frontier against the registry and truncates it to
// the remaining URL budget. The registry re-check here is what keeps
// concurrently-completed fetches from the previous round from being
// dispatched again.
func (o *Orchestrator) dispatchList(frontier []string) []string {
	remaining := o.cfg.URLLimit - o.registry.CountScraped()
	if remaining <= 0 {
		return nil
	}
	dispatch := make([]string, 0, len(frontier))
	for _, u := range frontier {
		if len(dispatch) >= remaining {
			break
		}
		if !o.registry.Seen(u) {
			dispatch = append(dispatch, u)
		}
	}
	return dispatch
}

// runRound submits the dispatch list to the worker pool and collects links
// for the next round as fetches complete, in any order. Once the scraped
// count reaches the limit, remaining in-flight fetches are still drained but
// their links are discarded. Because fetches run concurrently the final
// scraped count may overshoot the limit by up to MaxWorkers-1; that is a
// documented tolerance carried over deliberately, not a bug.
func (o *Orchestrator) runRound(
	ctx context.Context,
	dispatch []string,
	domain, sessionID string,
	logger *zap.Logger,
) []string {
	results := make(chan FetchResult, len(dispatch))
	sem := make(chan struct{}, o.cfg.MaxWorkers)
	var wg sync.WaitGroup
	for _, u := range dispatch {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- o.fetcher.Fetch(ctx, FetchRequest{
				URL:       pageURL,
				Domain:    domain,
				SessionID: sessionID,
			})
		}(u)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var next []string
	discarding := false
	for res := range results {
		if res.Err != nil {
			logger.Debug("page fetch failed", zap.Error(res.Err))
			continue
		}
		if discarding || o.registry.CountScraped() >= o.cfg.URLLimit {
			discarding = true
			continue
		}
		next = append(next, res.Links...)
	}
	return next
}

func (o *Orchestrator) publishSummary(
	ctx context.Context,
	runID, seedURL, sessionID string,
	res Result,
	logger *zap.Logger,
) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":        runID,
		"seed_url":      seedURL,
		"session_id":    sessionID,
		"success":       res.Success,
		"scraped":       res.Scraped,
		"failed":        res.Failed,
		"limit_reached": res.LimitReached,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		logger.Warn("run summary publish failed", zap.Error(err))
	}
}
