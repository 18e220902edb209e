// Package scraper drives the listing-to-dataset pipeline: cursor-driven
// pagination, bounded per-batch detail scraping, poster downloads and
// dataset writes.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-games/config"
	"github.com/aluiziolira/go-scrape-games/images"
	"github.com/aluiziolira/go-scrape-games/models"
	"github.com/aluiziolira/go-scrape-games/parser"
	"github.com/aluiziolira/go-scrape-games/pipeline"
)

// Scraper owns the in-memory run state: the fetcher, the poster downloader
// and the within-run dedupe cache. It is single-use per run.
type Scraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	posters *images.Downloader
	Metrics *Metrics

	seen *lru.Cache[string, struct{}]
}

// New builds a scraper instance configured from cfg.
func New(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	metrics := NewMetrics()

	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}

	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("configure dedupe cache: %w", err)
	}

	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		posters: images.New(fetcher, cfg.ImageDir, cfg.DownloadImages),
		Metrics: metrics,
		seen:    seen,
	}, nil
}

// itemResult carries one worker's outcome back to the orchestrator, which
// alone tallies counters and appends to the dataset.
type itemResult struct {
	game        *models.Game
	imageDone   bool
	imageFailed bool
}

// Run walks the listing pagination until the configured limit is reached or
// the cursor is exhausted, streaming each page batch through writer in
// discovery order. The returned summary reflects the work completed even
// when Run fails.
func (s *Scraper) Run(ctx context.Context, writer pipeline.OutputWriter) (*models.RunSummary, error) {
	summary := &models.RunSummary{StartTime: time.Now()}
	defer func() {
		summary.Retries = s.fetcher.TotalRetries()
		summary.EndTime = time.Now()
	}()

	cursor := s.cfg.BaseURL
	mismatches := 0

	for cursor != "" {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if s.cfg.Limit > 0 && summary.ItemsCollected >= s.cfg.Limit {
			break
		}

		body, err := s.fetcher.Fetch(ctx, cursor)
		if err != nil {
			// Without the listing page there is no cursor to continue from;
			// stopping here is better than silently under-collecting.
			return summary, fmt.Errorf("fetch listing page: %w", err)
		}
		summary.PagesFetched++
		s.Metrics.IncPages()

		refs, next, err := parser.ParseListing(body, cursor)
		if err != nil {
			if !parser.IsSchemaMismatch(err) {
				return summary, err
			}
			mismatches++
			s.Metrics.IncError("schema_mismatch")
			if mismatches >= s.cfg.SchemaMismatchLimit {
				return summary, fmt.Errorf("listing layout no longer matches after %d consecutive fetches: %w", mismatches, err)
			}
			// A mismatched page yields no cursor to advance to; refetch the
			// same one. A served error page can come back right on retry.
			slog.Warn("listing page did not match the expected layout, refetching",
				slog.String("url", cursor),
				slog.Int("consecutive", mismatches),
			)
			continue
		}
		mismatches = 0

		batch := s.dedupe(refs)
		if remaining := s.cfg.Limit - summary.ItemsCollected; s.cfg.Limit > 0 && len(batch) > remaining {
			batch = batch[:remaining]
		}
		if len(batch) == 0 {
			cursor = next
			continue
		}

		games := s.processBatch(ctx, batch, summary)
		if len(games) > 0 {
			if err := writer.Write(games); err != nil {
				return summary, fmt.Errorf("write dataset batch: %w", err)
			}
		}

		slog.Debug("listing page processed",
			slog.String("url", cursor),
			slog.Int("items", len(games)),
			slog.Int("collected", summary.ItemsCollected),
		)

		cursor = next
	}

	return summary, nil
}

// dedupe drops refs whose detail URL was already dispatched in this run.
// Listing pages of a moving ranking can overlap between fetches.
func (s *Scraper) dedupe(refs []models.ItemRef) []models.ItemRef {
	out := refs[:0]
	for _, ref := range refs {
		if _, dup := s.seen.Get(ref.URL); dup {
			continue
		}
		s.seen.Add(ref.URL, struct{}{})
		out = append(out, ref)
	}
	return out
}

// processBatch scrapes one page's items with bounded parallelism. Results
// land in an index-tagged slice so the output keeps discovery order no
// matter which worker finishes first.
func (s *Scraper) processBatch(ctx context.Context, refs []models.ItemRef, summary *models.RunSummary) []*models.Game {
	results := make([]itemResult, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = s.processItem(gctx, ref)
			return nil
		})
	}
	// Workers never return errors; per-item failures are carried in results.
	_ = g.Wait()

	games := make([]*models.Game, 0, len(refs))
	for _, res := range results {
		if res.game == nil {
			summary.ItemsFailed++
			s.Metrics.IncItemFailures()
			continue
		}
		games = append(games, res.game)
		summary.ItemsCollected++
		s.Metrics.IncItems()
		if res.imageDone {
			summary.ImagesDownloaded++
			s.Metrics.IncImages()
		}
		if res.imageFailed {
			summary.ImagesFailed++
			s.Metrics.IncImageFailures()
		}
	}
	return games
}

// processItem runs one item's pipeline: detail fetch, parse, then the
// poster download that depends on the parsed poster URL.
func (s *Scraper) processItem(ctx context.Context, ref models.ItemRef) itemResult {
	body, err := s.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		slog.Warn("detail fetch failed",
			slog.String("url", ref.URL),
			slog.Any("error", err),
		)
		return itemResult{}
	}

	game, err := parser.ParseDetail(body, ref.URL)
	if err != nil {
		slog.Warn("detail parse failed",
			slog.String("url", ref.URL),
			slog.Any("error", err),
		)
		return itemResult{}
	}

	game.Rank = ref.Rank
	if game.ID == "" {
		game.ID = ref.ID
	}

	res := itemResult{game: game}
	name, err := s.posters.MaybeDownload(ctx, game)
	switch {
	case err != nil:
		slog.Warn("poster download failed",
			slog.String("url", ref.URL),
			slog.Any("error", err),
		)
		res.imageFailed = true
	case name != "":
		game.PosterFile = &name
		res.imageDone = true
	}
	return res
}
