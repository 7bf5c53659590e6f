package persona

import (
	"sort"

	"github.com/myrjola/doppel/internal/models"
)

// Aggregate merges per-source records into one profile. Records are sorted by
// descending confidence first, so singular fields are filled by the
// highest-confidence source that has them and the result does not depend on
// input order. List fields are concatenated across all records; only skills
// are deduplicated.
type Aggregate struct {
	FullName        string
	Role            string
	Company         string
	Location        string
	Bio             string
	ProfileImageURL string
	Education       []string
	WorkHistory     []models.Experience
	Quotes          []models.Quote
	Opinions        []models.Opinion
	Skills          []string
	RawText         string
	DataPoints      int
}

func firstNonEmpty(current string, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

// Merge aggregates scraped records by confidence.
func Merge(scraped []models.ScrapedData) Aggregate {
	sorted := make([]models.ScrapedData, len(scraped))
	copy(sorted, scraped)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var out Aggregate
	rawParts := make([]string, 0, len(sorted))
	for _, record := range sorted {
		data := record.Data
		out.FullName = firstNonEmpty(out.FullName, data.FullName)
		out.Role = firstNonEmpty(out.Role, data.Role)
		out.Company = firstNonEmpty(out.Company, data.Company)
		out.Location = firstNonEmpty(out.Location, data.Location)
		out.Bio = firstNonEmpty(out.Bio, data.Bio)
		out.ProfileImageURL = firstNonEmpty(out.ProfileImageURL, data.ProfileImageURL)

		out.Education = append(out.Education, data.Education...)
		out.WorkHistory = append(out.WorkHistory, data.WorkHistory...)
		out.Quotes = append(out.Quotes, data.Quotes...)
		out.Opinions = append(out.Opinions, data.Opinions...)
		out.Skills = append(out.Skills, data.Skills...)

		if record.RawExcerpt != "" {
			rawParts = append(rawParts, record.RawExcerpt)
		}
		out.DataPoints += models.CountDataPoints(data)
	}

	out.Skills = dedupe(out.Skills)
	out.RawText = joinBounded(rawParts, maxRawTextExcerpt)
	return out
}

// dedupe removes exact string duplicates, keeping first occurrence order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func joinBounded(parts []string, limit int) string {
	var (
		out string
		sep string
	)
	for _, part := range parts {
		if len(out)+len(sep)+len(part) > limit {
			remaining := limit - len(out) - len(sep)
			if remaining > 0 {
				out += sep + part[:remaining]
			}
			break
		}
		out += sep + part
		sep = "\n\n"
	}
	return out
}
