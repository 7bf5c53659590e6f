// Package resolver disambiguates a target name into ranked identity
// candidates using the LLM provider's web knowledge.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/myrjola/doppel/internal/ai"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
	"github.com/myrjola/doppel/internal/random"
)

// Resolver finds plausible real-world matches for an ambiguous input name.
type Resolver interface {
	Resolve(ctx context.Context, name string, targetContext string) ([]models.IdentityCandidate, error)
}

// jsonCompleter is the slice of the AI client the resolver needs.
type jsonCompleter interface {
	JSONCompletion(ctx context.Context, system string, user string) (string, error)
}

// LLMResolver resolves identities with a structured-output LLM call.
type LLMResolver struct {
	ai     jsonCompleter
	logger *slog.Logger
}

// NewLLMResolver creates a resolver backed by the given completion client.
func NewLLMResolver(aiClient jsonCompleter, logger *slog.Logger) *LLMResolver {
	return &LLMResolver{
		ai:     aiClient,
		logger: logger.With("source", "LLMResolver"),
	}
}

const resolveSystemPrompt = `You are an identity disambiguation assistant. Given a person's name and
optional context, list the distinct publicly known people who plausibly match.
Respond with JSON: {"candidates": [{"name": string, "description": string,
"confidence": integer 0-100, "sourceUrls": [string], "thumbnailUrl": string}]}.
Order candidates by descending confidence. List at most five. If you know of
no matching public person, return an empty candidates list.`

// idLength sizes candidate ids.
const idLength = 8

// fallbackConfidence is assigned to the fabricated candidate when the search
// yields nothing parseable.
const fallbackConfidence = 30

type candidatesResponse struct {
	Candidates []struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Confidence   int      `json:"confidence"`
		SourceURLs   []string `json:"sourceUrls"`
		ThumbnailURL string   `json:"thumbnailUrl"`
	} `json:"candidates"`
}

// Resolve returns ranked identity candidates for the name. When the provider
// reply cannot be parsed or contains no candidates, a single low-confidence
// candidate equal to the literal input name is fabricated so that the caller
// can still proceed.
func (r *LLMResolver) Resolve(
	ctx context.Context,
	name string,
	targetContext string,
) ([]models.IdentityCandidate, error) {
	user := fmt.Sprintf("Name: %s", name)
	if targetContext != "" {
		user = fmt.Sprintf("%s\nContext: %s", user, targetContext)
	}

	reply, err := r.ai.JSONCompletion(ctx, resolveSystemPrompt, user)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "resolve identity", slog.String("name", name)),
			errors.KindResolution)
	}

	var parsed candidatesResponse
	if err = json.Unmarshal([]byte(ai.CleanJSON(reply)), &parsed); err != nil || len(parsed.Candidates) == 0 {
		if err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "unparseable candidate search reply", errors.SlogError(err))
		}
		return r.fallbackCandidates(name)
	}

	candidates := make([]models.IdentityCandidate, 0, len(parsed.Candidates))
	for _, c := range parsed.Candidates {
		id, idErr := random.Letters(idLength)
		if idErr != nil {
			return nil, errors.Wrap(idErr, "generate candidate id")
		}
		confidence := c.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
		candidates = append(candidates, models.IdentityCandidate{
			ID:           id,
			Name:         c.Name,
			Description:  c.Description,
			Confidence:   confidence,
			SourceURLs:   c.SourceURLs,
			ThumbnailURL: c.ThumbnailURL,
		})
	}
	return candidates, nil
}

func (r *LLMResolver) fallbackCandidates(name string) ([]models.IdentityCandidate, error) {
	id, err := random.Letters(idLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate candidate id")
	}
	return []models.IdentityCandidate{{
		ID:          id,
		Name:        name,
		Description: "No reliable match found, assuming the literal input name.",
		Confidence:  fallbackConfidence,
	}}, nil
}
