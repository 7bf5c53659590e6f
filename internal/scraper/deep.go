package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

// maxFollowUps caps the secondary pass over links discovered in scraped
// pages. The cap bounds scraping cost.
const maxFollowUps = 5

// maxURLsPerSource caps how many search URLs the deep scrape visits per source.
const maxURLsPerSource = 2

// DeepScrape walks the requested sources sequentially in fixed priority
// order, visiting several pages per source with a pacing delay between
// fetches, then follows up on a bounded number of links discovered in the
// scraped pages. Progress is reported after every page.
func (s *Scraper) DeepScrape(
	ctx context.Context,
	targetName string,
	sources []models.SourceType,
	identity models.IdentityCandidate,
	progress ProgressFunc,
) []models.ScrapedData {
	requested := make(map[models.SourceType]bool, len(sources))
	for _, source := range sources {
		requested[source] = true
	}

	var (
		results   []models.ScrapedData
		followUps []string
		pages     int
	)

	tick := func(source models.SourceType) {
		pages++
		if progress != nil {
			progress(source, pages, pages)
		}
	}

	for _, source := range models.AllSourceTypes() {
		if !requested[source] {
			continue
		}
		urls := searchURLs(source, identity)
		if len(urls) > maxURLsPerSource {
			urls = urls[:maxURLsPerSource]
		}
		for _, pageURL := range urls {
			s.pace(ctx)
			record, err := s.scrapeSource(ctx, targetName, source, identity, pageURL)
			tick(source)
			if err != nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "deep scrape page failed",
					slog.String("sourceType", string(source)),
					slog.String("url", pageURL),
					errors.SlogError(err))
				continue
			}
			results = append(results, record)
			if len(followUps) < maxFollowUps {
				followUps = appendFollowUps(followUps, s.discoverLinks(ctx, pageURL), maxFollowUps)
			}
		}
	}

	// Secondary pass over links found in scraped text, bounded to cap cost.
	for _, followUpURL := range followUps {
		s.pace(ctx)
		record, err := s.scrapeSource(ctx, targetName, models.SourceOther, identity, followUpURL)
		tick(models.SourceOther)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "follow-up page failed",
				slog.String("url", followUpURL), errors.SlogError(err))
			continue
		}
		results = append(results, record)
	}

	return results
}

// pace sleeps the configured delay between sequential fetches unless the
// context is done.
func (s *Scraper) pace(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.delay):
	}
}

// discoverLinks pulls absolute links out of a scraped page for the follow-up
// pass. Failures are treated as "no links".
func (s *Scraper) discoverLinks(ctx context.Context, pageURL string) []string {
	html, err := s.fetch.pageHTML(ctx, pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		if strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "http://") {
			links = append(links, href)
		}
	})
	return links
}

func appendFollowUps(existing []string, discovered []string, limit int) []string {
	seen := make(map[string]bool, len(existing))
	for _, u := range existing {
		seen[u] = true
	}
	for _, u := range discovered {
		if len(existing) >= limit {
			break
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		existing = append(existing, u)
	}
	return existing
}
