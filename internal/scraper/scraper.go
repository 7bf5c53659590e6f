// Package scraper turns a confirmed identity into per-source ScrapedData
// records. Sources are queried through generated search URLs, page text is
// extracted with readability, and an LLM pass coerces the text into
// structured fields. A failing source yields no record; it never fails the
// whole scrape.
package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
	"github.com/myrjola/doppel/internal/random"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc is invoked after every scraped page.
type ProgressFunc func(source models.SourceType, pagesScraped int, costUnits int)

// SourceScraper is the contract the coordinator depends on.
type SourceScraper interface {
	ScrapeAll(
		ctx context.Context,
		targetName string,
		sources []models.SourceType,
		identity models.IdentityCandidate,
		progress ProgressFunc,
	) []models.ScrapedData
	DeepScrape(
		ctx context.Context,
		targetName string,
		sources []models.SourceType,
		identity models.IdentityCandidate,
		progress ProgressFunc,
	) []models.ScrapedData
}

type jsonCompleter interface {
	JSONCompletion(ctx context.Context, system string, user string) (string, error)
}

// Scraper implements SourceScraper over HTTP fetches and LLM extraction.
type Scraper struct {
	ai     jsonCompleter
	fetch  *fetcher
	logger *slog.Logger
	// delay paces sequential page fetches in the deep scrape.
	delay time.Duration
}

// newsFeedItems bounds how many feed entries the news source flattens.
const newsFeedItems = 10

// recordIDLength sizes ScrapedData ids.
const recordIDLength = 8

// NewScraper creates a scraper. fetchTimeout bounds a single page fetch,
// delay paces the deep scrape's sequential fetches.
func NewScraper(aiClient jsonCompleter, fetchTimeout time.Duration, delay time.Duration, logger *slog.Logger) *Scraper {
	return &Scraper{
		ai:     aiClient,
		fetch:  newFetcher(fetchTimeout),
		logger: logger.With("source", "Scraper"),
		delay:  delay,
	}
}

// ScrapeAll queries all requested sources concurrently. Each source's failure
// is caught locally and yields no record. The returned slice is ordered by
// source priority regardless of completion order.
func (s *Scraper) ScrapeAll(
	ctx context.Context,
	targetName string,
	sources []models.SourceType,
	identity models.IdentityCandidate,
	progress ProgressFunc,
) []models.ScrapedData {
	var (
		mu      sync.Mutex
		results = make(map[models.SourceType]models.ScrapedData)
		pages   int
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, source := range sources {
		g.Go(func() error {
			record, err := s.scrapeSource(ctx, targetName, source, identity, searchURLs(source, identity)[0])
			mu.Lock()
			defer mu.Unlock()
			pages++
			if progress != nil {
				progress(source, pages, pages)
			}
			if err != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "source failed, omitting from results",
					slog.String("sourceType", string(source)), errors.SlogError(err))
				return nil
			}
			results[source] = record
			return nil
		})
	}
	// Goroutines swallow their own errors, so Wait only synchronizes.
	_ = g.Wait()

	ordered := make([]models.ScrapedData, 0, len(results))
	for _, source := range models.AllSourceTypes() {
		if record, ok := results[source]; ok {
			ordered = append(ordered, record)
		}
	}
	return ordered
}

// scrapeSource produces one record for one source URL.
func (s *Scraper) scrapeSource(
	ctx context.Context,
	targetName string,
	source models.SourceType,
	identity models.IdentityCandidate,
	pageURL string,
) (models.ScrapedData, error) {
	var (
		text string
		err  error
	)
	if source == models.SourceNews {
		text, err = s.fetch.feedText(ctx, pageURL, newsFeedItems)
	} else {
		text, err = s.fetch.pageText(ctx, pageURL)
	}
	if err != nil {
		return models.ScrapedData{}, errors.WithKind(err, errors.KindScrape)
	}
	if text == "" {
		return models.ScrapedData{}, errors.WithKind(
			errors.New("no readable text", slog.String("url", pageURL)), errors.KindScrape)
	}

	data, err := s.extractPersonData(ctx, targetName, source, text)
	if err != nil {
		return models.ScrapedData{}, errors.WithKind(err, errors.KindScrape)
	}

	id, err := random.Letters(recordIDLength)
	if err != nil {
		return models.ScrapedData{}, errors.Wrap(err, "generate record id")
	}
	return models.ScrapedData{
		ID:         id,
		SourceType: source,
		SourceURL:  pageURL,
		ScrapedAt:  time.Now().UTC(),
		Confidence: Confidence(source),
		Data:       data,
		RawExcerpt: truncate(text, rawExcerptLimit),
	}, nil
}
