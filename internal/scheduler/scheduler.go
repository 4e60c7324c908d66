// Package scheduler drives the recurring refill and drain phases of the
// ingestion pipeline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
	"github.com/ovbagirov/berkat-crawler/internal/metrics"
)

var advertIDRe = regexp.MustCompile(`/(\d+)-[^/]*\.html$`)

// CategoryJob names one category listing to poll.
type CategoryJob struct {
	Path string
	// FilterBlacklist enables the secondary service-offer keyword pass.
	FilterBlacklist bool
}

// Config controls scheduling cadence and batch size.
type Config struct {
	Categories     []CategoryJob
	RefillInterval time.Duration
	DrainInterval  time.Duration
	BatchSize      int
}

// Discoverer finds candidate detail URLs for a category.
type Discoverer interface {
	Links(ctx context.Context, categoryPath string) []string
	FilterServiceOffers(ctx context.Context, urls []string) []string
}

// Extractor parses one detail page into a RawAdvert.
type Extractor interface {
	Extract(html []byte) (advert.RawAdvert, error)
}

// Scheduler owns the single-worker ingestion timeline: refill ticks feed
// the queue, drain ticks pull bounded batches through the pipeline.
type Scheduler struct {
	queue      advert.LinkQueue
	store      advert.ProductStore
	fetcher    advert.Fetcher
	discoverer Discoverer
	extractor  Extractor
	normalizer advert.Normalizer
	media      advert.MediaStore
	clock      advert.Clock
	cfg        Config
	logger     *zap.Logger
	cron       *cron.Cron

	// runMu keeps refill and drain on one timeline. Cron's
	// SkipIfStillRunning only serializes a job against itself, so the two
	// entries need a shared guard to never overlap each other.
	runMu sync.Mutex
}

// New constructs a Scheduler.
func New(
	queue advert.LinkQueue,
	store advert.ProductStore,
	fetcher advert.Fetcher,
	discoverer Discoverer,
	extractor Extractor,
	normalizer advert.Normalizer,
	media advert.MediaStore,
	clock advert.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &Scheduler{
		queue:      queue,
		store:      store,
		fetcher:    fetcher,
		discoverer: discoverer,
		extractor:  extractor,
		normalizer: normalizer,
		media:      media,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the cron entries and begins ticking. Ticks are
// serialized: a tick that is still running swallows the next firing.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	refillSpec := fmt.Sprintf("@every %s", s.cfg.RefillInterval)
	if _, err := c.AddFunc(refillSpec, func() { s.Refill(ctx) }); err != nil {
		return fmt.Errorf("register refill job: %w", err)
	}
	drainSpec := fmt.Sprintf("@every %s", s.cfg.DrainInterval)
	if _, err := c.AddFunc(drainSpec, func() { s.Drain(ctx) }); err != nil {
		return fmt.Errorf("register drain job: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("scheduler started",
		zap.Duration("refill_interval", s.cfg.RefillInterval),
		zap.Duration("drain_interval", s.cfg.DrainInterval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	return nil
}

// Stop halts the cron and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs a single refill followed by a single drain.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.Refill(ctx)
	s.Drain(ctx)
}

// Refill discovers links for every configured category and enqueues the
// new ones. A category's failure degrades to zero links for that
// category and never aborts the others. The tick is skipped when a drain
// or another refill is still in progress.
func (s *Scheduler) Refill(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.logger.Debug("refill tick skipped, another phase still running")
		return
	}
	defer s.runMu.Unlock()

	for _, cat := range s.cfg.Categories {
		links := s.discoverer.Links(ctx, cat.Path)
		metrics.LinksDiscovered(cat.Path, len(links))
		if cat.FilterBlacklist {
			links = s.discoverer.FilterServiceOffers(ctx, links)
		}
		for _, link := range links {
			added, err := s.queue.Enqueue(ctx, link)
			if err != nil {
				s.logger.Error("enqueue failed", zap.String("url", link), zap.Error(err))
				continue
			}
			if added {
				metrics.LinkEnqueued()
				s.logger.Debug("link enqueued", zap.String("url", link))
			}
		}
	}
}

// Drain pulls one bounded batch through the pipeline. Each item is
// isolated: its failure is logged and its queue entry removed, the
// siblings continue. The tick is skipped when a refill or another drain
// is still in progress.
func (s *Scheduler) Drain(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.logger.Debug("drain tick skipped, another phase still running")
		return
	}
	defer s.runMu.Unlock()

	batch, err := s.queue.DequeueBatch(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("dequeue batch failed", zap.Error(err))
		return
	}
	for _, link := range batch {
		start := s.clock.Now()
		outcome := s.processLink(ctx, link)
		metrics.ItemProcessed(string(outcome))
		metrics.ObserveItemDuration(s.clock.Now().Sub(start))

		// The attempt is over either way; the entry must not linger.
		if err := s.queue.Remove(ctx, link.ID); err != nil {
			s.logger.Error("queue remove failed",
				zap.String("url", link.URL),
				zap.Error(err),
			)
		}
	}
}

// processLink walks one queue item through fetch, extract, media upload,
// normalization and persistence. It never panics out.
func (s *Scheduler) processLink(ctx context.Context, link advert.QueueLink) (outcome advert.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while processing item",
				zap.String("url", link.URL),
				zap.Any("panic", rec),
			)
			outcome = advert.OutcomeFailed
		}
	}()

	html, err := s.fetcher.Fetch(ctx, link.URL)
	if err != nil {
		s.logger.Warn("fetch failed, dropping item", zap.String("url", link.URL), zap.Error(err))
		return advert.OutcomeFailed
	}

	raw, err := s.extractor.Extract(html)
	if err != nil {
		if errors.Is(err, advert.ErrMissingCity) || errors.Is(err, advert.ErrMissingCategory) {
			s.logger.Warn("required field missing, dropping item",
				zap.String("url", link.URL),
				zap.Error(err),
			)
		} else {
			s.logger.Error("extraction failed", zap.String("url", link.URL), zap.Error(err))
		}
		return advert.OutcomeFailed
	}

	images := s.media.UploadAll(ctx, raw.Images, advertIDFromURL(link.URL))

	norm, err := s.normalizer.Normalize(ctx, raw)
	if err != nil {
		if errors.Is(err, advert.ErrRejected) {
			s.logger.Info("item rejected by normalizer", zap.String("url", link.URL))
			return advert.OutcomeRejected
		}
		s.logger.Warn("normalization failed, dropping item",
			zap.String("url", link.URL),
			zap.Error(err),
		)
		return advert.OutcomeFailed
	}
	if norm.Rejected {
		s.logger.Info("item flagged as service listing", zap.String("url", link.URL))
		return advert.OutcomeRejected
	}

	if _, err := s.store.FindBySourceURL(ctx, link.URL); err == nil {
		s.logger.Debug("item already ingested", zap.String("url", link.URL))
		return advert.OutcomeDuplicate
	} else if !errors.Is(err, advert.ErrNotFound) {
		s.logger.Error("existing-product lookup failed",
			zap.String("url", link.URL),
			zap.Error(err),
		)
		return advert.OutcomeFailed
	}

	product := &advert.Product{
		ID:          uuid.NewString(),
		Title:       norm.Title,
		Description: norm.Description,
		Price:       norm.Price,
		Images:      images,
		Category:    raw.Category,
		City:        raw.City,
		Phone:       norm.Phone,
		Views:       raw.Views,
		Properties:  raw.Properties,
		SourceURL:   link.URL,
		CreatedAt:   raw.CreatedAt,
		IngestedAt:  s.clock.Now(),
	}
	if err := s.store.Create(ctx, product); err != nil {
		if errors.Is(err, advert.ErrDuplicateURL) {
			s.logger.Debug("duplicate insert skipped", zap.String("url", link.URL))
			return advert.OutcomeDuplicate
		}
		s.logger.Error("persist failed", zap.String("url", link.URL), zap.Error(err))
		return advert.OutcomeFailed
	}

	s.logger.Info("item persisted",
		zap.String("url", link.URL),
		zap.String("product_id", product.ID),
		zap.Int("price", product.Price),
		zap.Int("images", len(images)),
	)
	return advert.OutcomePersisted
}

// advertIDFromURL pulls the numeric listing id out of a permalink so
// media files get reproducible names across retries of the same item.
func advertIDFromURL(url string) string {
	if m := advertIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return uuid.NewString()
}
