package ai

import (
	"context"
	"io"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/sashabaranov/go-openai"
)

// MaxTokens bounds every completion we request.
const MaxTokens = 4096

// Client wraps the LLM and speech provider. Every call runs under a deadline
// so that a hung provider cannot wedge an investigation.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a provider client. baseURL may be empty to use the
// provider default. timeout applies to every call made through the client.
func NewClient(apiKey string, baseURL string, timeout time.Duration) Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return Client{
		client:  openai.NewClientWithConfig(config),
		model:   openai.GPT3Dot5Turbo1106,
		timeout: timeout,
	}
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// SyncCompletion requests a chat completion and waits for the full response.
func (c *Client) SyncCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	temperature float32,
) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:       c.model,
			MaxTokens:   MaxTokens,
			Temperature: temperature,
			Messages:    messages,
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no choices in completion")
	}
	return completion.Choices[0].Message.Content, nil
}

// JSONCompletion requests a chat completion in JSON mode. The caller is
// responsible for unmarshalling; use [CleanJSON] first since some models
// fence their output even in JSON mode.
func (c *Client) JSONCompletion(ctx context.Context, system string, user string) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create JSON completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no choices in completion")
	}
	return completion.Choices[0].Message.Content, nil
}

// StreamCompletion requests a streaming chat completion. The caller must
// close the stream. The returned cancel function releases the deadline and
// must be called once the stream is drained.
func (c *Client) StreamCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	temperature float32,
) (*openai.ChatCompletionStream, context.CancelFunc, error) {
	ctx, cancel := c.withDeadline(ctx)
	completion, err := c.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:       c.model,
			Temperature: temperature,
			Messages:    messages,
		},
	)
	if err != nil {
		cancel()
		return nil, nil, errors.Wrap(err, "create chat completion stream")
	}
	return completion, cancel, nil
}

// Speech renders text as audio with the given voice. Returns MP3 bytes.
func (c *Client) Speech(ctx context.Context, text string, voice string) ([]byte, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	response, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{ //nolint:exhaustruct
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(voice),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create speech")
	}
	defer func() {
		_ = response.Close()
	}()
	audio, err := io.ReadAll(response)
	if err != nil {
		return nil, errors.Wrap(err, "read speech response")
	}
	return audio, nil
}

// Voices lists the provider's synthetic voice catalog.
func (c *Client) Voices() []string {
	return []string{
		string(openai.VoiceAlloy),
		string(openai.VoiceEcho),
		string(openai.VoiceFable),
		string(openai.VoiceOnyx),
		string(openai.VoiceNova),
		string(openai.VoiceShimmer),
	}
}
