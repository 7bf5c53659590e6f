package scraper

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/myrjola/doppel/internal/errors"
)

const userAgent = "doppel/1.0 (public-profile research)"

// maxRedirects caps redirect chains on page fetches.
const maxRedirects = 10

// minReadableLength is the shortest extraction we consider useful. Shorter
// texts are usually cookie walls or bot checks.
const minReadableLength = 100

// fetcher retrieves page text and feeds over HTTP.
type fetcher struct {
	client *http.Client
	feeds  *gofeed.Parser
}

func newFetcher(timeout time.Duration) *fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client
	return &fetcher{client: client, feeds: parser}
}

func (f *fetcher) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch page")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.New("unexpected status fetching page")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read page body")
	}
	return body, nil
}

// pageHTML returns the raw HTML of the page for link discovery.
func (f *fetcher) pageHTML(ctx context.Context, pageURL string) (string, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// pageText fetches a page and extracts its main text with readability.
// Returns an empty string when nothing readable was found.
func (f *fetcher) pageText(ctx context.Context, pageURL string) (string, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", errors.Wrap(err, "extract readable text")
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minReadableLength {
		return "", nil
	}
	return text, nil
}

// feedText fetches an RSS/Atom feed and flattens item titles and snippets
// into text for extraction. Used by the news source.
func (f *fetcher) feedText(ctx context.Context, feedURL string, maxItems int) (string, error) {
	feed, err := f.feeds.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", errors.Wrap(err, "parse feed")
	}

	var b strings.Builder
	for i, item := range feed.Items {
		if i >= maxItems {
			break
		}
		b.WriteString(item.Title)
		if item.Description != "" {
			b.WriteString(" — ")
			b.WriteString(item.Description)
		}
		if item.Published != "" {
			b.WriteString(" (")
			b.WriteString(item.Published)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
