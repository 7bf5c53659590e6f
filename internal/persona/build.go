// Package persona synthesizes a personality/knowledge/speech profile and its
// role-play system prompt from scraped source records.
package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/doppel/internal/ai"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
)

// Builder turns scraped data into a PersonaModel.
type Builder interface {
	Build(ctx context.Context, targetID string, targetName string, scraped []models.ScrapedData) (*models.PersonaModel, error)
}

type jsonCompleter interface {
	JSONCompletion(ctx context.Context, system string, user string) (string, error)
}

// LLMBuilder infers personality with an LLM call and falls back to a generic
// skeleton when inference fails.
type LLMBuilder struct {
	ai     jsonCompleter
	logger *slog.Logger
}

// NewLLMBuilder creates a persona builder backed by the given completion client.
func NewLLMBuilder(aiClient jsonCompleter, logger *slog.Logger) *LLMBuilder {
	return &LLMBuilder{
		ai:     aiClient,
		logger: logger.With("source", "LLMBuilder"),
	}
}

// Prompt input bounds keep the inference call affordable.
const (
	maxPromptQuotes      = 10
	maxPromptOpinions    = 10
	maxPromptWorkHistory = 10
	maxRawTextExcerpt    = 6000
)

const inferenceSystemPrompt = `You infer the personality of a real person from collected public data.
Respond with JSON: {"traits": [string], "communicationStyle": string,
"values": [string], "quirks": [string], "expertise": [string],
"experiences": [string], "tone": string, "vocabulary": [string],
"signaturePhrases": [string]}.
Ground every inference in the provided data. Keep lists short and specific.`

type inferenceResponse struct {
	Traits             []string `json:"traits"`
	CommunicationStyle string   `json:"communicationStyle"`
	Values             []string `json:"values"`
	Quirks             []string `json:"quirks"`
	Expertise          []string `json:"expertise"`
	Experiences        []string `json:"experiences"`
	Tone               string   `json:"tone"`
	Vocabulary         []string `json:"vocabulary"`
	SignaturePhrases   []string `json:"signaturePhrases"`
}

// Build aggregates the scraped records and synthesizes the persona. A failed
// personality inference degrades to a generic skeleton instead of failing the
// investigation.
func (b *LLMBuilder) Build(
	ctx context.Context,
	targetID string,
	targetName string,
	scraped []models.ScrapedData,
) (*models.PersonaModel, error) {
	aggregate := Merge(scraped)

	inference := b.infer(ctx, targetName, aggregate)

	name := aggregate.FullName
	if name == "" {
		name = targetName
	}

	persona := models.PersonaModel{
		TargetID:   targetID,
		TargetName: targetName,
		Identity: models.Identity{
			FullName:        name,
			Role:            aggregate.Role,
			Company:         aggregate.Company,
			Location:        aggregate.Location,
			Bio:             aggregate.Bio,
			ProfileImageURL: aggregate.ProfileImageURL,
		},
		Personality: models.Personality{
			Traits:             inference.Traits,
			CommunicationStyle: inference.CommunicationStyle,
			Values:             inference.Values,
			Quirks:             inference.Quirks,
		},
		Knowledge: models.Knowledge{
			Expertise:   inference.Expertise,
			Opinions:    aggregate.Opinions,
			Experiences: inference.Experiences,
			Education:   aggregate.Education,
			WorkHistory: aggregate.WorkHistory,
		},
		Speech: models.Speech{
			Tone:             inference.Tone,
			Vocabulary:       inference.Vocabulary,
			SignaturePhrases: inference.SignaturePhrases,
			ExampleQuotes:    quoteTexts(aggregate.Quotes),
		},
		CreatedAt:  time.Now().UTC(),
		DataPoints: aggregate.DataPoints,
	}

	prompt, err := renderSystemPrompt(persona)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "render system prompt"), errors.KindSynthesis)
	}
	persona.SystemPrompt = prompt
	return &persona, nil
}

// infer runs the personality inference call. Any failure, including malformed
// output, falls back to a skeleton derived only from the skills list.
func (b *LLMBuilder) infer(ctx context.Context, targetName string, aggregate Aggregate) inferenceResponse {
	reply, err := b.ai.JSONCompletion(ctx, inferenceSystemPrompt, inferenceUserPrompt(targetName, aggregate))
	if err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "personality inference failed, using generic skeleton",
			errors.SlogError(err))
		return genericPersonality(aggregate.Skills)
	}
	var parsed inferenceResponse
	if err = json.Unmarshal([]byte(ai.CleanJSON(reply)), &parsed); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "personality inference reply not valid JSON, using generic skeleton",
			errors.SlogError(err))
		return genericPersonality(aggregate.Skills)
	}
	return parsed
}

func inferenceUserPrompt(targetName string, aggregate Aggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Person: %s\n", targetName)
	if aggregate.Bio != "" {
		fmt.Fprintf(&b, "\nBio:\n%s\n", aggregate.Bio)
	}
	if len(aggregate.Quotes) > 0 {
		b.WriteString("\nQuotes:\n")
		for i, quote := range aggregate.Quotes {
			if i >= maxPromptQuotes {
				break
			}
			fmt.Fprintf(&b, "- %q", quote.Text)
			if quote.Source != "" {
				fmt.Fprintf(&b, " (%s)", quote.Source)
			}
			b.WriteString("\n")
		}
	}
	if len(aggregate.Opinions) > 0 {
		b.WriteString("\nOpinions:\n")
		for i, opinion := range aggregate.Opinions {
			if i >= maxPromptOpinions {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", opinion.Topic, opinion.Position)
		}
	}
	if len(aggregate.WorkHistory) > 0 {
		b.WriteString("\nWork history:\n")
		for i, experience := range aggregate.WorkHistory {
			if i >= maxPromptWorkHistory {
				break
			}
			fmt.Fprintf(&b, "- %s at %s (%s)\n", experience.Role, experience.Company, experience.Period)
		}
	}
	if aggregate.RawText != "" {
		fmt.Fprintf(&b, "\nRaw source excerpts:\n%s\n", aggregate.RawText)
	}
	return b.String()
}

// genericPersonality is the fixed fallback skeleton used when inference fails.
func genericPersonality(skills []string) inferenceResponse {
	return inferenceResponse{
		Traits:             []string{"thoughtful", "articulate", "curious"},
		CommunicationStyle: "clear and measured",
		Values:             []string{"honesty", "craftsmanship"},
		Expertise:          skills,
		Tone:               "conversational and professional",
	}
}

func quoteTexts(quotes []models.Quote) []string {
	texts := make([]string, 0, len(quotes))
	for _, quote := range quotes {
		texts = append(texts, quote.Text)
	}
	return texts
}
