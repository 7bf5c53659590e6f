package models

import "time"

// SessionStatus tracks whether a conversation accepts new turns.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationSession holds the chat history between a user and an
// impersonated persona. Mutated only by appending messages; ended by
// explicit termination.
type ConversationSession struct {
	ID          string        `json:"id"`
	PersonaID   string        `json:"personaId"`
	PersonaName string        `json:"personaName"`
	StartedAt   time.Time     `json:"startedAt"`
	Messages    []Message     `json:"messages"`
	Status      SessionStatus `json:"status"`
	// VoiceID is selected once when the session starts and cached for its lifetime.
	VoiceID string `json:"voiceId,omitempty"`
	// SystemPrompt is snapshotted from the persona at session start.
	SystemPrompt string `json:"systemPrompt,omitempty"`
}
