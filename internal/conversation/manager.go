// Package conversation manages chat sessions with synthesized personas.
package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/models"
	"github.com/myrjola/doppel/internal/random"
	"github.com/myrjola/doppel/internal/store"
	"github.com/myrjola/doppel/internal/voice"
	"github.com/sashabaranov/go-openai"
)

// Completer is the slice of the AI client the manager needs.
type Completer interface {
	SyncCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, temperature float32) (string, error)
	StreamCompletion(
		ctx context.Context,
		messages []openai.ChatCompletionMessage,
		temperature float32,
	) (*openai.ChatCompletionStream, context.CancelFunc, error)
	Speech(ctx context.Context, text string, voiceID string) ([]byte, error)
}

// chatTemperature is the fixed sampling temperature for persona chat.
const chatTemperature = 0.8

// historyWindow bounds how many past messages are forwarded to the provider
// on each turn. Older turns are dropped, not summarized.
const historyWindow = 24

// sessionIDLength sizes session ids.
const sessionIDLength = 12

// ErrSessionEnded is returned when sending to a terminated session.
var ErrSessionEnded = errors.NewSentinel("session has ended")

// Manager owns conversation sessions and forwards turns to the chat provider
// with the persona's system prompt.
type Manager struct {
	sessions store.SessionStore
	ai       Completer
	voices   voice.Selector
	logger   *slog.Logger
}

// NewManager creates a conversation manager.
func NewManager(sessions store.SessionStore, aiClient Completer, voices voice.Selector, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: sessions,
		ai:       aiClient,
		voices:   voices,
		logger:   logger.With("source", "ConversationManager"),
	}
}

// Start opens a session for the persona. The voice is selected once here and
// cached on the session.
func (m *Manager) Start(ctx context.Context, persona *models.PersonaModel) (*models.ConversationSession, error) {
	id, err := random.Letters(sessionIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate session id")
	}
	voiceID, _ := m.voices.Select(*persona)
	session := models.ConversationSession{
		ID:           id,
		PersonaID:    persona.TargetID,
		PersonaName:  persona.Identity.FullName,
		StartedAt:    time.Now().UTC(),
		Status:       models.SessionActive,
		VoiceID:      voiceID,
		SystemPrompt: persona.SystemPrompt,
	}
	if err = m.sessions.Put(ctx, &session); err != nil {
		return nil, errors.Wrap(err, "store session")
	}
	return &session, nil
}

// Get returns the session or a not-found error.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.WithKind(err, errors.KindNotFound)
		}
		return nil, errors.Wrap(err, "get session")
	}
	return session, nil
}

// Send appends the user turn, forwards the windowed history with the persona
// system prompt to the chat provider, and appends and returns the assistant
// turn.
func (m *Manager) Send(ctx context.Context, sessionID string, text string) (*models.Message, error) {
	session, err := m.appendMessage(ctx, sessionID, models.RoleUser, text)
	if err != nil {
		return nil, err
	}

	reply, err := m.ai.SyncCompletion(ctx, providerMessages(session), chatTemperature)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion", slog.String("sessionID", sessionID))
	}

	session, err = m.appendMessage(ctx, sessionID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	last := session.Messages[len(session.Messages)-1]
	return &last, nil
}

// Stream is like Send but delivers the assistant reply as text fragments on
// the returned channel. The full reply is appended to the session once the
// stream finishes. The channel closes when the reply is complete or the
// stream fails.
func (m *Manager) Stream(ctx context.Context, sessionID string, text string) (<-chan string, error) {
	session, err := m.appendMessage(ctx, sessionID, models.RoleUser, text)
	if err != nil {
		return nil, err
	}

	stream, cancel, err := m.ai.StreamCompletion(ctx, providerMessages(session), chatTemperature)
	if err != nil {
		return nil, errors.Wrap(err, "start chat stream", slog.String("sessionID", sessionID))
	}

	fragments := make(chan string)
	go func() {
		defer close(fragments)
		defer cancel()
		defer func() {
			stream.Close()
		}()
		var full string
		for {
			response, recvErr := stream.Recv()
			if recvErr != nil {
				break
			}
			if len(response.Choices) == 0 {
				continue
			}
			fragment := response.Choices[0].Delta.Content
			if fragment == "" {
				continue
			}
			full += fragment
			select {
			case fragments <- fragment:
			case <-ctx.Done():
				return
			}
		}
		if full == "" {
			return
		}
		if _, appendErr := m.appendMessage(ctx, sessionID, models.RoleAssistant, full); appendErr != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "could not record streamed reply",
				slog.String("sessionID", sessionID), errors.SlogError(appendErr))
		}
	}()
	return fragments, nil
}

// End terminates a session. Further sends fail with ErrSessionEnded.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	_, err := m.sessions.Update(ctx, sessionID, func(session *models.ConversationSession) error {
		session.Status = models.SessionEnded
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.WithKind(err, errors.KindNotFound)
		}
		return errors.Wrap(err, "end session")
	}
	return nil
}

// Speak renders text as audio. An empty voiceID uses the provider default.
func (m *Manager) Speak(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = voice.Default{Voice: "alloy"}.Voice
	}
	audio, err := m.ai.Speech(ctx, text, voiceID)
	if err != nil {
		return nil, errors.Wrap(err, "synthesize speech")
	}
	return audio, nil
}

func (m *Manager) appendMessage(
	ctx context.Context,
	sessionID string,
	role models.Role,
	content string,
) (*models.ConversationSession, error) {
	session, err := m.sessions.Update(ctx, sessionID, func(session *models.ConversationSession) error {
		if session.Status == models.SessionEnded {
			return errors.WithKind(ErrSessionEnded, errors.KindValidation)
		}
		session.Messages = append(session.Messages, models.Message{
			Role:      role,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.WithKind(err, errors.KindNotFound)
		}
		return nil, err
	}
	return session, nil
}

// providerMessages builds the system prompt plus the windowed history.
func providerMessages(session *models.ConversationSession) []openai.ChatCompletionMessage {
	history := session.Messages
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: session.SystemPrompt,
	})
	for _, message := range history {
		role := openai.ChatMessageRoleUser
		if message.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: message.Content,
		})
	}
	return messages
}
