package resolver_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/resolver"
	"github.com/myrjola/doppel/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	reply    string
	err      error
	lastUser string
}

func (s *stubCompleter) JSONCompletion(_ context.Context, _ string, user string) (string, error) {
	s.lastUser = user
	return s.reply, s.err
}

func TestResolveParsesCandidates(t *testing.T) {
	completer := &stubCompleter{reply: `{"candidates": [
		{"name": "Ada Lovelace", "description": "19th century mathematician", "confidence": 95,
		 "sourceUrls": ["https://en.wikipedia.org/wiki/Ada_Lovelace"]},
		{"name": "Ada Lovelace", "description": "contemporary musician", "confidence": 120},
		{"name": "Ada Lovelace", "description": "fictional character", "confidence": -5}
	]}`}
	r := resolver.NewLLMResolver(completer, testhelpers.NewLogger(io.Discard))

	candidates, err := r.Resolve(context.Background(), "Ada Lovelace", "computing pioneer")
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "Ada Lovelace", candidates[0].Name)
	assert.Equal(t, 95, candidates[0].Confidence)
	assert.NotEmpty(t, candidates[0].ID)
	assert.Equal(t, 100, candidates[1].Confidence, "confidence above 100 is clamped")
	assert.Equal(t, 0, candidates[2].Confidence, "negative confidence is clamped")
	assert.NotEqual(t, candidates[0].ID, candidates[1].ID)

	assert.Contains(t, completer.lastUser, "Ada Lovelace")
	assert.Contains(t, completer.lastUser, "computing pioneer")
}

func TestResolveStripsMarkdownFences(t *testing.T) {
	completer := &stubCompleter{reply: "```json\n{\"candidates\": [{\"name\": \"Ada\", \"confidence\": 80}]}\n```"}
	r := resolver.NewLLMResolver(completer, testhelpers.NewLogger(io.Discard))

	candidates, err := r.Resolve(context.Background(), "Ada", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Ada", candidates[0].Name)
}

func TestResolveFallsBackOnUnparseableReply(t *testing.T) {
	completer := &stubCompleter{reply: "I could not find anyone by that name."}
	r := resolver.NewLLMResolver(completer, testhelpers.NewLogger(io.Discard))

	candidates, err := r.Resolve(context.Background(), "Jane Nobody", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Jane Nobody", candidates[0].Name, "fallback candidate carries the literal input name")
	assert.Equal(t, 30, candidates[0].Confidence)
}

func TestResolveFallsBackOnEmptyCandidateList(t *testing.T) {
	completer := &stubCompleter{reply: `{"candidates": []}`}
	r := resolver.NewLLMResolver(completer, testhelpers.NewLogger(io.Discard))

	candidates, err := r.Resolve(context.Background(), "Jane Nobody", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestResolveCompleterErrorIsResolutionKind(t *testing.T) {
	completer := &stubCompleter{err: assert.AnError}
	r := resolver.NewLLMResolver(completer, testhelpers.NewLogger(io.Discard))

	_, err := r.Resolve(context.Background(), "Ada Lovelace", "")
	require.Error(t, err)
	assert.Equal(t, errors.KindResolution, errors.KindOf(err))
}
