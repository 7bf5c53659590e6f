package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/myrjola/doppel/internal/models"
)

// SourceConfidence fixes the confidence assigned to each source type.
// These are configuration data pending product input, not derived from
// extraction quality.
var SourceConfidence = map[models.SourceType]int{
	models.SourceEncyclopedia:        90,
	models.SourceProfessionalNetwork: 85,
	models.SourceCompanySite:         80,
	models.SourceNews:                75,
	models.SourceCodeHosting:         70,
	models.SourceVideoPlatform:       65,
	models.SourcePodcastDirectory:    60,
	models.SourceSocialNetwork:       55,
	models.SourceGenericSearch:       40,
	models.SourceOther:               30,
}

// Confidence returns the fixed confidence for a source type.
func Confidence(source models.SourceType) int {
	if confidence, ok := SourceConfidence[source]; ok {
		return confidence
	}
	return SourceConfidence[models.SourceOther]
}

func wikiTitle(name string) string {
	return url.PathEscape(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func query(parts ...string) string {
	return url.QueryEscape(strings.Join(parts, " "))
}

// searchURLs builds the candidate pages for one source type. The first URL is
// the primary; the rest are only visited by the deep scrape.
func searchURLs(source models.SourceType, identity models.IdentityCandidate) []string {
	name := identity.Name
	switch source {
	case models.SourceEncyclopedia:
		return []string{
			fmt.Sprintf("https://en.wikipedia.org/wiki/%s", wikiTitle(name)),
			fmt.Sprintf("https://en.wikipedia.org/w/index.php?search=%s", query(name)),
		}
	case models.SourceProfessionalNetwork:
		return []string{
			fmt.Sprintf("https://www.google.com/search?q=%s", query(name, "site:linkedin.com/in")),
		}
	case models.SourceSocialNetwork:
		return []string{
			fmt.Sprintf("https://www.google.com/search?q=%s", query(name, "site:x.com OR site:bsky.app")),
		}
	case models.SourceNews:
		// Handled as an RSS feed, see Scraper.scrapeSource.
		return []string{
			fmt.Sprintf("https://news.google.com/rss/search?q=%s", query(fmt.Sprintf("%q", name))),
		}
	case models.SourceCompanySite:
		urls := []string{
			fmt.Sprintf("https://www.google.com/search?q=%s", query(name, identity.Description, "official site")),
		}
		return urls
	case models.SourcePodcastDirectory:
		return []string{
			fmt.Sprintf("https://podcasts.apple.com/us/search?term=%s", query(name)),
		}
	case models.SourceVideoPlatform:
		return []string{
			fmt.Sprintf("https://www.youtube.com/results?search_query=%s", query(name, "interview")),
		}
	case models.SourceCodeHosting:
		return []string{
			fmt.Sprintf("https://github.com/search?type=users&q=%s", query(name)),
		}
	case models.SourceGenericSearch:
		return []string{
			fmt.Sprintf("https://duckduckgo.com/html/?q=%s", query(name, identity.Description)),
		}
	default:
		return []string{
			fmt.Sprintf("https://duckduckgo.com/html/?q=%s", query(name)),
		}
	}
}
