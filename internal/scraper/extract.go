package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/myrjola/doppel/internal/ai"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

const extractSystemPrompt = `You extract structured facts about a specific person from scraped web text.
Only include facts about the named person; ignore everyone else on the page.
Respond with JSON: {"fullName": string, "role": string, "company": string,
"location": string, "bio": string, "profileImageUrl": string,
"education": [string],
"workHistory": [{"role": string, "company": string, "period": string, "description": string}],
"quotes": [{"text": string, "source": string, "context": string, "date": string}],
"opinions": [{"topic": string, "position": string, "confidence": integer 0-100}],
"skills": [string]}.
Omit any field you found nothing for. Never invent facts.`

// maxExtractionInput bounds the scraped text sent to the extraction call.
const maxExtractionInput = 12000

// rawExcerptLimit caps the raw text stored on a ScrapedData record.
const rawExcerptLimit = 2000

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

// extractPersonData coerces free text into structured PersonData. When the
// provider reply is not valid JSON, the truncated raw text becomes the bio
// rather than discarding the source entirely.
func (s *Scraper) extractPersonData(
	ctx context.Context,
	targetName string,
	source models.SourceType,
	text string,
) (models.PersonData, error) {
	user := fmt.Sprintf("Person: %s\nSource type: %s\n\nScraped text:\n%s",
		targetName, source, truncate(text, maxExtractionInput))

	reply, err := s.ai.JSONCompletion(ctx, extractSystemPrompt, user)
	if err != nil {
		return models.PersonData{}, errors.Wrap(err, "extraction completion",
			slog.String("sourceType", string(source)))
	}

	var data models.PersonData
	if err = json.Unmarshal([]byte(ai.CleanJSON(reply)), &data); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "extraction reply not valid JSON, keeping raw text as bio",
			slog.String("sourceType", string(source)), errors.SlogError(err))
		return models.PersonData{Bio: truncate(text, rawExcerptLimit)}, nil
	}
	return data, nil
}
