package persona_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/doppel/internal/models"
	"github.com/myrjola/doppel/internal/persona"
	"github.com/myrjola/doppel/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) JSONCompletion(_ context.Context, _ string, _ string) (string, error) {
	return s.reply, s.err
}

func testScrapedData() []models.ScrapedData {
	return []models.ScrapedData{
		{
			SourceType: models.SourceEncyclopedia,
			Confidence: 90,
			Data: models.PersonData{
				FullName: "Ada Lovelace",
				Role:     "Mathematician",
				Bio:      "Pioneer of computing.",
				Quotes:   []models.Quote{{Text: "The Analytical Engine weaves algebraic patterns."}},
				Skills:   []string{"mathematics"},
			},
		},
	}
}

func TestBuildWithInference(t *testing.T) {
	builder := persona.NewLLMBuilder(stubCompleter{
		reply: `{"traits": ["visionary"], "communicationStyle": "precise",
"values": ["rigor"], "expertise": ["analytical engines"], "tone": "formal"}`,
	}, testhelpers.NewLogger(io.Discard))

	got, err := builder.Build(context.Background(), "inv1", "Ada Lovelace", testScrapedData())
	require.NoError(t, err)

	assert.Equal(t, "inv1", got.TargetID)
	assert.Equal(t, "Ada Lovelace", got.Identity.FullName)
	assert.Equal(t, "Mathematician", got.Identity.Role)
	assert.Equal(t, []string{"visionary"}, got.Personality.Traits)
	assert.Equal(t, []string{"analytical engines"}, got.Knowledge.Expertise)
	assert.Equal(t, "formal", got.Speech.Tone)
	assert.Equal(t, []string{"The Analytical Engine weaves algebraic patterns."}, got.Speech.ExampleQuotes)
	assert.Positive(t, got.DataPoints)

	assert.Contains(t, got.SystemPrompt, "You are Ada Lovelace.")
	assert.Contains(t, got.SystemPrompt, "Traits: visionary")
	assert.Contains(t, got.SystemPrompt, "Pioneer of computing.")
	assert.Contains(t, got.SystemPrompt, "Never mention that you are an AI model")
}

func TestBuildFallsBackOnInferenceError(t *testing.T) {
	builder := persona.NewLLMBuilder(stubCompleter{err: assert.AnError}, testhelpers.NewLogger(io.Discard))

	got, err := builder.Build(context.Background(), "inv1", "Ada Lovelace", testScrapedData())
	require.NoError(t, err, "inference failure degrades, it does not fail the build")

	assert.NotEmpty(t, got.Personality.Traits)
	assert.Equal(t, []string{"mathematics"}, got.Knowledge.Expertise, "skills survive into the fallback skeleton")
	assert.NotEmpty(t, got.SystemPrompt)
}

func TestBuildFallsBackOnMalformedReply(t *testing.T) {
	builder := persona.NewLLMBuilder(stubCompleter{reply: "certainly! here is the persona"},
		testhelpers.NewLogger(io.Discard))

	got, err := builder.Build(context.Background(), "inv1", "Ada Lovelace", testScrapedData())
	require.NoError(t, err)
	assert.NotEmpty(t, got.Personality.CommunicationStyle)
}

func TestBuildUsesTargetNameWhenScrapeFoundNone(t *testing.T) {
	builder := persona.NewLLMBuilder(stubCompleter{reply: "{}"}, testhelpers.NewLogger(io.Discard))

	got, err := builder.Build(context.Background(), "inv1", "Unknown Person", nil)
	require.NoError(t, err)
	assert.Equal(t, "Unknown Person", got.Identity.FullName)
	assert.Contains(t, got.SystemPrompt, "You are Unknown Person.")
}
